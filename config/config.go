package config

import (
	"database/sql"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/viper"
	"material-pipeline/constant"
	"material-pipeline/pkg/mailer"
	"material-pipeline/pkg/oracle"
)

type Config struct {
	App       App           `yaml:"app"`
	DB        *sql.DB       `yaml:"db"`
	Queue     *RabbitMQ     `yaml:"rabbitmq"`
	Server    Server        `yaml:"server"`
	Storage   Storage       `yaml:"storage"`
	Generator oracle.Config `yaml:"generator"`
	Mail      mailer.Config `yaml:"mail"`
	Transcode Transcode     `yaml:"transcode"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort    string   `yaml:"http_port"`
	Workers     int      `yaml:"workers"`
	CorsOrigins []string `yaml:"cors_origins"`
}

type RabbitMQ struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Kind string `json:"kind"`
}

// Enabled reports whether a broker is configured. Without one, generation
// runs in-process and uploaded videos are not transcoded.
func (r *RabbitMQ) Enabled() bool {
	return r != nil && r.Host != ""
}

type Storage struct {
	Provider constant.StorageProvider `yaml:"provider"`
	URLTTL   time.Duration            `yaml:"url_ttl"`
	Local    LocalStorage             `yaml:"local"`
	MinIO    MinIOStorage             `yaml:"minio"`
	GCS      GCSStorage               `yaml:"gcs"`
}

type LocalStorage struct {
	Root          string `yaml:"root"`
	BaseURL       string `yaml:"base_url"`
	SigningSecret string `yaml:"signing_secret"`
}

type MinIOStorage struct {
	URL             string `yaml:"url"`
	AccessID        string `yaml:"access_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	UseSSL          bool   `yaml:"use_ssl"`
}

type GCSStorage struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

type Transcode struct {
	FFmpegPath  string `yaml:"ffmpeg"`
	FFprobePath string `yaml:"ffprobe"`
	Resolutions []int  `yaml:"resolutions"`
	WorkDir     string `yaml:"work_dir"`
}

func Load(path string) (*Config, error) {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),
	}

	return &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort:    viper.GetString("server.port"),
			Workers:     viper.GetInt("server.workers"),
			CorsOrigins: viper.GetStringSlice("server.cors_origins"),
		},
		DB:    db,
		Queue: rabbitmq,
		Storage: Storage{
			Provider: constant.StorageProvider(viper.GetString("storage.provider")),
			URLTTL:   viper.GetDuration("storage.url_ttl"),
			Local: LocalStorage{
				Root:          viper.GetString("storage.local.root"),
				BaseURL:       viper.GetString("storage.local.base_url"),
				SigningSecret: viper.GetString("storage.local.signing_secret"),
			},
			MinIO: MinIOStorage{
				URL:             viper.GetString("storage.minio.url"),
				AccessID:        viper.GetString("storage.minio.access_id"),
				SecretAccessKey: viper.GetString("storage.minio.secret_access_key"),
				Bucket:          viper.GetString("storage.minio.bucket"),
				UseSSL:          viper.GetBool("storage.minio.use_ssl"),
			},
			GCS: GCSStorage{
				Bucket:          viper.GetString("storage.gcs.bucket"),
				CredentialsFile: viper.GetString("storage.gcs.credentials_file"),
			},
		},
		Generator: oracle.Config{
			Mode:     constant.GeneratorMode(viper.GetString("generator.mode")),
			Endpoint: viper.GetString("generator.endpoint"),
			APIKey:   viper.GetString("generator.api_key"),
			Model:    viper.GetString("generator.model"),
			Timeout:  viper.GetDuration("generator.timeout"),
		},
		Mail: mailer.Config{
			Host:     viper.GetString("mail.host"),
			Port:     viper.GetInt("mail.port"),
			Username: viper.GetString("mail.username"),
			Password: viper.GetString("mail.password"),
			From:     viper.GetString("mail.from"),
		},
		Transcode: Transcode{
			FFmpegPath:  viper.GetString("transcode.ffmpeg"),
			FFprobePath: viper.GetString("transcode.ffprobe"),
			Resolutions: viper.GetIntSlice("transcode.resolutions"),
			WorkDir:     viper.GetString("transcode.work_dir"),
		},
	}, nil
}

func setDefaults() {
	viper.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 2)
	viper.SetDefault("rabbitmq_port", 5672)
	viper.SetDefault("rabbitmq_kind", "direct")
	viper.SetDefault("storage.provider", string(constant.StorageProviderLocal))
	viper.SetDefault("storage.url_ttl", 15*time.Minute)
	viper.SetDefault("storage.local.root", "data/files")
	viper.SetDefault("storage.local.base_url", "http://localhost:8080/storage/local")
	viper.SetDefault("generator.mode", string(constant.GeneratorModeLocal))
	viper.SetDefault("generator.endpoint", "http://localhost:11434/v1")
	viper.SetDefault("generator.timeout", 120*time.Second)
	viper.SetDefault("mail.port", 587)
	viper.SetDefault("transcode.ffmpeg", "ffmpeg")
	viper.SetDefault("transcode.ffprobe", "ffprobe")
	viper.SetDefault("transcode.resolutions", []int{360, 720})
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"material-pipeline/config"
	"material-pipeline/constant"
	"material-pipeline/dto"
	"material-pipeline/entities"
	"material-pipeline/pkg/storage"
	"material-pipeline/repository"
)

// TranscodeService renders the configured resolutions of an uploaded video
// and attaches them as variants.
type TranscodeService interface {
	Process(ctx context.Context, message dto.TranscodeMessage) error
	// MarkFailed gives up on a video whose job ran out of deliveries.
	MarkFailed(ctx context.Context, message dto.TranscodeMessage) error
}

type transcodeService struct {
	files       repository.CourseMaterialRepository
	providers   *storage.Registry
	tool        mediaTool
	resolutions []Resolution
	workDir     string
}

func (s *transcodeService) Process(ctx context.Context, message dto.TranscodeMessage) (err error) {
	logger := zerolog.Ctx(ctx).With().Str("material_id", message.MaterialId.String()).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Msg("processing transcode job")

	material, err := s.files.FindByID(ctx, message.MaterialId)
	if err != nil {
		logger.Error().Err(err).Msg("failed to find course file")
		return errors.Join(ErrNonRetryable, err)
	}
	if material.Type != constant.FileTypeVideo {
		return errors.Join(ErrNonRetryable, fmt.Errorf("course file %s is %s, not a video", material.ID, material.Type))
	}
	if material.Status != constant.FileStatusProcessing {
		logger.Info().Str("status", string(material.Status)).Msg("course file is not processing")
		return nil
	}

	defer func() {
		if err != nil && ctx.Err() != nil {
			// interrupted, not failed: the file stays PROCESSING for redelivery
			logger.Warn().Err(err).Msg("transcode interrupted")
			err = fmt.Errorf("transcode of %s interrupted: %w", material.ID, ctx.Err())
			return
		}
		if err != nil && errors.Is(err, ErrNonRetryable) {
			if updateErr := s.files.UpdateStatus(context.WithoutCancel(ctx), material.ID, constant.FileStatusFailed); updateErr != nil {
				logger.Error().Err(updateErr).Msg("failed to update file status")
			}
			err = nil
		}
	}()

	provider, err := s.providers.Get(material.StorageProvider)
	if err != nil {
		return errors.Join(ErrNonRetryable, err)
	}

	tempDir := filepath.Join(s.workDir, material.ID.String())
	defer os.RemoveAll(tempDir)
	if err = os.MkdirAll(tempDir, os.ModePerm); err != nil {
		logger.Error().Err(err).Msg("failed to create work directory")
		return errors.Join(ErrNonRetryable, err)
	}

	inputFilepath := filepath.Join(tempDir, "input"+filepath.Ext(material.Filename))
	logger.Info().Str("input_file", inputFilepath).Msg("downloading original")
	if err = download(ctx, provider, material.StorageRef, inputFilepath); err != nil {
		logger.Error().Err(err).Msg("failed to download original")
		if errors.Is(err, storage.ErrObjectNotFound) {
			return errors.Join(ErrNonRetryable, err)
		}
		return err
	}

	if material.Duration == nil {
		seconds, probeErr := s.tool.Probe(ctx, inputFilepath)
		if probeErr != nil {
			logger.Error().Err(probeErr).Msg("failed to probe duration")
			return errors.Join(ErrNonRetryable, probeErr)
		}
		if err = s.files.UpdateDuration(ctx, material.ID, seconds); err != nil {
			return err
		}
	}

	done := map[string]bool{}
	for _, v := range material.Variants {
		done[v.Resolution] = true
	}
	base := strings.TrimSuffix(material.OriginalName, filepath.Ext(material.OriginalName))

	for _, r := range s.resolutions {
		if done[r.Name()] {
			continue
		}
		outputFilepath := filepath.Join(tempDir, r.Name()+".mp4")
		if err = s.tool.Transcode(ctx, inputFilepath, outputFilepath, r); err != nil {
			logger.Error().Err(err).Str("resolution", r.Name()).Msg("failed to transcode")
			return errors.Join(ErrNonRetryable, err)
		}

		variant, storeErr := storeRendition(ctx, provider, material, outputFilepath, fmt.Sprintf("%s_%s.mp4", base, r.Name()))
		if storeErr != nil {
			logger.Error().Err(storeErr).Str("resolution", r.Name()).Msg("failed to store rendition")
			return storeErr
		}
		variant.Resolution = r.Name()
		if err = s.files.AppendVariant(ctx, material.ID, *variant); err != nil {
			return err
		}
		logger.Info().Str("resolution", r.Name()).Int64("size", variant.Size).Msg("rendition stored")
	}

	if err = s.files.UpdateStatus(ctx, material.ID, constant.FileStatusReady); err != nil {
		logger.Error().Err(err).Msg("failed to update file status")
		return err
	}
	logger.Info().Msg("transcode job completed")
	return nil
}

func (s *transcodeService) MarkFailed(ctx context.Context, message dto.TranscodeMessage) error {
	material, err := s.files.FindByID(ctx, message.MaterialId)
	if err != nil {
		return err
	}
	if material.Type != constant.FileTypeVideo || material.Status != constant.FileStatusProcessing {
		return nil
	}
	zerolog.Ctx(ctx).Warn().Str("material_id", material.ID.String()).Msg("transcode retries exhausted, marking file failed")
	return s.files.UpdateStatus(ctx, material.ID, constant.FileStatusFailed)
}

func download(ctx context.Context, provider storage.Provider, ref, target string) error {
	src, err := provider.Open(ctx, ref)
	if err != nil {
		return err
	}
	defer src.Stream.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src.Stream)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	return err
}

func storeRendition(ctx context.Context, provider storage.Provider, material *entities.CourseMaterial, path, name string) (*entities.Variant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	stored, err := provider.Store(ctx, storage.File{
		OriginalName: name,
		Mime:         "video/mp4",
		Size:         info.Size(),
		Content:      f,
	}, storage.StoreOptions{Prefix: fmt.Sprintf("courses/%s/variants", material.CourseID)})
	if err != nil {
		return nil, err
	}
	return &entities.Variant{StorageRef: stored.Ref, Size: stored.Size}, nil
}

func NewTranscodeService(files repository.CourseMaterialRepository, providers *storage.Registry, cfg config.Transcode) TranscodeService {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "material-pipeline")
	}
	tool := ffmpegTool{ffmpeg: cfg.FFmpegPath, ffprobe: cfg.FFprobePath}
	if tool.ffmpeg == "" {
		tool.ffmpeg = "ffmpeg"
	}
	if tool.ffprobe == "" {
		tool.ffprobe = "ffprobe"
	}
	return &transcodeService{
		files:       files,
		providers:   providers,
		tool:        tool,
		resolutions: ResolutionsFor(cfg.Resolutions),
		workDir:     workDir,
	}
}

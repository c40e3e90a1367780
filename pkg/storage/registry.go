package storage

import (
	"fmt"
	"io"

	"material-pipeline/constant"
)

// Registry resolves the provider that issued a stored reference. New uploads
// go to the default provider; records written under an older provider keep
// resolving through it.
type Registry struct {
	providers map[constant.StorageProvider]Provider
	def       Provider
}

func NewRegistry(def Provider, others ...Provider) *Registry {
	r := &Registry{
		providers: map[constant.StorageProvider]Provider{def.Name(): def},
		def:       def,
	}
	for _, p := range others {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Default() Provider {
	return r.def
}

func (r *Registry) Get(name constant.StorageProvider) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("storage provider %q is not configured", name)
	}
	return p, nil
}

func copyBuffer(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	return io.CopyBuffer(dst, src, buf)
}

package render

import (
	"log/slog"

	"github.com/starford/folio/internal/codec"
	"github.com/starford/folio/internal/graphstore"
	"github.com/starford/folio/internal/models"
)

// KnownRefs is the set of API entities a batch renders against.
type KnownRefs struct {
	Keys   []models.Key
	Family []models.RefInfo
	// ByPath maps a qualified name to the greatest key carrying it.
	ByPath map[string]models.RefInfo
	// Skipped counts pages left out of the scan.
	Skipped int
}

// Names returns every known qualified name.
func (k *KnownRefs) Names() []string {
	out := make([]string, 0, len(k.ByPath))
	for name := range k.ByPath {
		out = append(out, name)
	}
	return out
}

// ScanKnownRefs lists every API page of the store. Pages that cannot be
// read or decoded are logged and left out.
func ScanKnownRefs(store graphstore.KeyedStore, logger *slog.Logger) (*KnownRefs, error) {
	keys, err := store.Glob(models.Glob("", "", models.KindModule, ""))
	if err != nil {
		return nil, err
	}
	out := &KnownRefs{ByPath: make(map[string]models.RefInfo, len(keys))}
	for _, k := range keys {
		data, err := store.Get(k)
		if err == nil {
			_, err = codec.DecodeDocument(data)
		}
		if err != nil {
			logger.Warn("render: skipped undecodable document",
				slog.String("key", k.String()),
				slog.String("error", err.Error()),
			)
			pagesSkipped.WithLabelValues(string(k.Kind)).Inc()
			out.Skipped++
			continue
		}
		out.Keys = append(out.Keys, k)
		out.Family = append(out.Family, k.Info())
		// keys are sorted, so later versions overwrite earlier ones
		out.ByPath[k.Path] = k.Info()
	}
	return out, nil
}

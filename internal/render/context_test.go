package render

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/models"
)

func refs(module string, n int) []models.RefInfo {
	out := make([]models.RefInfo, n)
	for i := range out {
		out[i] = models.RefInfo{Module: module, Version: "1.0", Kind: models.KindModule, Path: fmt.Sprintf("%s.f%d", module, i)}
	}
	return out
}

func TestAssemble_GroupsLargeBackrefSets(t *testing.T) {
	back := append(refs("x", 12), refs("y", 23)...)

	ctx, err := Assemble(Input{
		Doc:           &models.Document{Title: "target"},
		QualifiedName: "z.target",
		Backrefs:      back,
		Meta:          map[string]any{"version": "1.0"},
	})
	require.NoError(t, err)

	assert.Empty(t, ctx.Backrefs)
	require.Len(t, ctx.GroupedBackrefs, 2)
	assert.Len(t, ctx.GroupedBackrefs["x"], 12)
	assert.Len(t, ctx.GroupedBackrefs["y"], 23)
}

func TestBucketBackrefs_PreservesCount(t *testing.T) {
	for _, n := range []int{0, 1, 30, 31, 100} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			in := append(refs("x", n/3), refs("y", n-n/3)...)

			flat, grouped := BucketBackrefs(in, DefaultGroupThreshold)

			total := len(flat)
			for _, v := range grouped {
				total += len(v)
			}
			assert.Equal(t, n, total)
			if n > 0 {
				assert.True(t, (len(flat) > 0) != (len(grouped) > 0), "exactly one container must be populated")
			}
			if n > DefaultGroupThreshold {
				assert.Empty(t, flat)
			} else {
				assert.Nil(t, grouped)
			}
		})
	}
}

func TestBucketBackrefs_PathWithoutDot(t *testing.T) {
	in := append(refs("x", 31), models.RefInfo{Module: "solo", Version: "1", Kind: models.KindModule, Path: "solo"})

	_, grouped := BucketBackrefs(in, DefaultGroupThreshold)

	assert.Len(t, grouped["solo"], 1)
}

func TestAssemble_ModuleVersionLogo(t *testing.T) {
	ctx, err := Assemble(Input{
		CurrentType:   "api",
		Doc:           &models.Document{Title: "norm"},
		QualifiedName: "numpy.linalg.norm",
		Meta:          map[string]any{"version": "1.22", "logo": "logo.png", "tag": "x"},
	})
	require.NoError(t, err)

	assert.Equal(t, "numpy", ctx.Module)
	assert.Equal(t, "1.22", ctx.Version)
	require.NotNil(t, ctx.Logo)
	assert.Equal(t, "logo.png", *ctx.Logo)
	assert.NotNil(t, ctx.Backrefs)
}

func TestAssemble_MissingVersion(t *testing.T) {
	_, err := Assemble(Input{
		Doc:           &models.Document{},
		QualifiedName: "numpy.dot",
		Meta:          map[string]any{"logo": "x.png"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrMissingVersion))
	assert.Contains(t, err.Error(), "numpy.dot")
}

func TestAssemble_InvalidMetadata(t *testing.T) {
	cases := map[string]map[string]any{
		"numeric version": {"version": 1.22},
		"empty version":   {"version": ""},
		"numeric logo":    {"version": "1.0", "logo": 3},
	}
	for name, meta := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Assemble(Input{Doc: &models.Document{}, QualifiedName: "pkg.item", Meta: meta})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "pkg.item")
		})
	}
}

func TestAssemble_NoDocument(t *testing.T) {
	_, err := Assemble(Input{QualifiedName: "pkg.item", Meta: map[string]any{"version": "1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pkg.item")
}

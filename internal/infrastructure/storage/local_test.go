package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/aavi4012-cmd/invoice-fraud-backend/internal/domain/errors"
)

func TestSave_SanitizesAndSuffixesName(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	path, err := store.Save("Invoice (March).pdf", "application/pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "Invoice__March_-"), "got %q", name)
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
}

func TestSave_SameNameTwiceDoesNotCollide(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	first, err := store.Save("invoice.pdf", "application/pdf", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := store.Save("invoice.pdf", "application/pdf", strings.NewReader("b"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestSave_RejectsUnsupportedType(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, err = store.Save("notes.txt", "text/plain", strings.NewReader("hi"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestRemove_MissingFileIsNotAnError(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	assert.NoError(t, store.Remove(filepath.Join(t.TempDir(), "gone.pdf")))
}

func TestIsAllowedType(t *testing.T) {
	assert.True(t, IsAllowedType("application/pdf"))
	assert.True(t, IsAllowedType("image/jpeg"))
	assert.True(t, IsAllowedType("image/png"))
	assert.False(t, IsAllowedType("image/gif"))
	assert.False(t, IsAllowedType(""))
}

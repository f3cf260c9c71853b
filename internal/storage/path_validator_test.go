package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"go-pharmacy-catalog/pkg/apierror"
)

func TestPathValidatorResolve(t *testing.T) {
	t.Parallel()

	validator, err := NewPathValidator(t.TempDir())
	require.NoError(t, err)

	t.Run("plain file resolves inside root", func(t *testing.T) {
		resolved, resolveErr := validator.Resolve("abc-para.png")
		require.NoError(t, resolveErr)
		require.Equal(t, filepath.Join(validator.RootAbs(), "abc-para.png"), resolved)
	})

	t.Run("leading slash and backslashes are normalized", func(t *testing.T) {
		resolved, resolveErr := validator.Resolve(`/thumbs\abc.jpg`)
		require.NoError(t, resolveErr)
		require.Equal(t, filepath.Join(validator.RootAbs(), "thumbs", "abc.jpg"), resolved)
	})

	t.Run("root itself is rejected", func(t *testing.T) {
		_, resolveErr := validator.Resolve("/")
		require.Error(t, resolveErr)
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		for _, rel := range []string{"../secrets.txt", "thumbs/../../x", "./x"} {
			_, resolveErr := validator.Resolve(rel)
			var apiErr *apierror.APIError
			require.ErrorAs(t, resolveErr, &apiErr, rel)
			require.Equal(t, "PATH_TRAVERSAL", apiErr.Code)
		}
	})

	t.Run("control characters are rejected", func(t *testing.T) {
		_, resolveErr := validator.Resolve("abc\npara.png")
		require.Error(t, resolveErr)

		_, resolveErr = validator.Resolve("abc\x00.png")
		require.Error(t, resolveErr)
	})

	t.Run("sibling directory with shared prefix is outside root", func(t *testing.T) {
		require.False(t, isWithinRoot("/tmp/uploads", "/tmp/uploads-old/file.png"))
		require.True(t, isWithinRoot("/tmp/uploads", "/tmp/uploads/file.png"))
	})
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputRouter(t *testing.T) {
	imageOut := normalizedFixture()
	imageOut.Company = "From Images"
	htmlOut := normalizedFixture()
	htmlOut.Company = "From HTML"

	router := &inputRouter{
		images: &fakeExtractor{out: imageOut},
		html:   &fakeExtractor{out: htmlOut},
	}

	t.Run("images go to the image backend", func(t *testing.T) {
		got, err := router.Extract(context.Background(), ExtractionInput{
			Images:      [][]byte{[]byte("photo")},
			ContentType: "image/jpeg",
		})
		require.NoError(t, err)
		assert.Equal(t, "From Images", got.Company)
	})

	t.Run("email html goes to the html backend", func(t *testing.T) {
		got, err := router.Extract(context.Background(), ExtractionInput{HTML: "<html>receipt</html>"})
		require.NoError(t, err)
		assert.Equal(t, "From HTML", got.Company)
	})

	t.Run("name reports the image backend", func(t *testing.T) {
		assert.Equal(t, "fake", router.Name())
	})
}

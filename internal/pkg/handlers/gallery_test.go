package handlers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forumarch/archiver/pkg/models"
)

func TestClassifyGalleryContentSingleImage(t *testing.T) {
	require.Equal(t, models.ContentTypeImage, classifyGalleryContent([]string{"1_0.jpg"}))
}

func TestClassifyGalleryContentSingleVideo(t *testing.T) {
	require.Equal(t, models.ContentTypeVideo, classifyGalleryContent([]string{"1_0.mp4"}))
}

func TestClassifyGalleryContentSingleOther(t *testing.T) {
	require.Equal(t, models.ContentTypeFile, classifyGalleryContent([]string{"1_0.pdf"}))
}

func TestClassifyGalleryContentMultiple(t *testing.T) {
	require.Equal(t, models.ContentTypeGallery, classifyGalleryContent([]string{"1_0.jpg", "1_1.jpg"}))
}

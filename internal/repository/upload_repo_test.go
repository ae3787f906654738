package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/models"
)

func TestUploadRepositoryCreate(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.UploadRecord{}))

	repo := NewUploadRepository(db)

	userID := uint(7)
	record := models.UploadRecord{UserID: &userID, FileName: "slides.pdf", URL: "/uploads/slides.pdf", MimeType: "application/pdf", SizeBytes: 2048, Checksum: "abc123"}
	require.NoError(t, repo.Create(context.Background(), &record))
	require.NotZero(t, record.ID)

	var stored models.UploadRecord
	require.NoError(t, db.First(&stored, record.ID).Error)
	require.Equal(t, "slides.pdf", stored.FileName)
	require.Equal(t, "application/pdf", stored.MimeType)
}

// Package types provides type definitions for structured data used throughout the dump loader.
package types

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ArchiveFileName is the name the downloaded archive is stored under inside the work directory.
const ArchiveFileName = "dump.tar.gz"

// ExtractDirName is the directory the archive is unpacked into inside the work directory.
const ExtractDirName = "dump.tar"

// ArchiveJob describes one ingestion run. It exists only for the duration of the run.
type ArchiveJob struct {
	ID          uuid.UUID `json:"id"`
	SourceURL   string    `json:"source_url"`
	ArchivePath string    `json:"archive_path"`
	ExtractDir  string    `json:"extract_dir"`
	StartedAt   time.Time `json:"started_at"`
}

// NewArchiveJob creates a job whose archive and extraction directory live under workDir.
func NewArchiveJob(sourceURL, workDir string) *ArchiveJob {
	return &ArchiveJob{
		ID:          uuid.New(),
		SourceURL:   sourceURL,
		ArchivePath: filepath.Join(workDir, ArchiveFileName),
		ExtractDir:  filepath.Join(workDir, ExtractDirName),
		StartedAt:   time.Now(),
	}
}

// Path resolves a path relative to the extraction directory.
func (j *ArchiveJob) Path(rel string) string {
	return filepath.Join(j.ExtractDir, filepath.FromSlash(rel))
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sourcestack/internal/core/domain"
)

func writeResume(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParse(t *testing.T) {
	jobs := &mockJobService{candidate: &domain.ParsedCandidate{
		SourceFile: "cv.txt",
		Name:       "Jane Doe",
		Email:      "jane@example.com",
		Confidence: 0.6,
	}}
	setupServices(t, &Services{Jobs: jobs})
	path := writeResume(t, "cv.txt", "Jane Doe\njane@example.com\n")

	out, err := runCommand(t, "", "parse", path)
	require.NoError(t, err)
	assert.Equal(t, "cv.txt", jobs.parsedName)
	assert.Equal(t, "Jane Doe\njane@example.com\n", string(jobs.parsedData))
	assert.Contains(t, out, "Name:        Jane Doe")
	assert.Contains(t, out, "Phone:       -")
	assert.Contains(t, out, "Confidence:  0.60")
}

func TestParse_JSON(t *testing.T) {
	candidate := &domain.ParsedCandidate{
		SourceFile: "cv.docx",
		Errors:     []string{"Unsupported file type: .docx"},
	}
	setupServices(t, &Services{Jobs: &mockJobService{candidate: candidate}})
	path := writeResume(t, "cv.docx", "not a zip")

	out, err := runCommand(t, "", "parse", path, "--json")
	require.NoError(t, err)

	var got domain.ParsedCandidate
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, *candidate, got)
}

func TestParse_MissingFile(t *testing.T) {
	jobs := &mockJobService{}
	setupServices(t, &Services{Jobs: jobs})

	_, err := runCommand(t, "", "parse", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, jobs.parsedName)
}

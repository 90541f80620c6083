package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMedia(t *testing.T) {
	cases := map[string]MediaKind{
		".png":            MediaImage,
		"JPG":             MediaImage,
		"image/svg":       MediaImage,
		".mov":            MediaVideo,
		"video/mp4":       MediaVideo,
		".wav":            MediaAudio,
		".docx":           MediaDocument,
		"text/csv":        MediaDocument,
		".zip":            MediaOther,
		"":                MediaOther,
		"application/pdf": MediaDocument,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClassifyMedia(in), in)
	}
}

func TestMediaTypeForFile(t *testing.T) {
	assert.Equal(t, ".pdf", MediaTypeForFile("Notes.PDF"))
	assert.Equal(t, ".gz", MediaTypeForFile("archive.tar.gz"))
	assert.Equal(t, "", MediaTypeForFile("README"))
}

func TestDisplayFileName(t *testing.T) {
	assert.Equal(t, "lecture notes", DisplayFileName("https://cdn.example.com/uploads/20240501_140500_lecture%20notes.pdf"))
	assert.Equal(t, "photo", DisplayFileName("https://cdn.example.com/photo.png?sig=abc"))
	assert.Equal(t, "2024_draft", DisplayFileName("/media/2024_draft.docx"))
	assert.Equal(t, "File", DisplayFileName(""))
}

func TestDisplayFileNameStripsReportRange(t *testing.T) {
	assert.Equal(t, "report", DisplayFileName("http://files/20240501_140500_report_2024-01-01_to_2024-03-31.pdf"))
	assert.Equal(t, "grades_term2", DisplayFileName("http://files/grades_2024-01-01_to_2024-03-31_term2.xlsx"))
	assert.Equal(t, "notes_2024-01-01", DisplayFileName("http://files/notes_2024-01-01.txt"))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Hello world", StripTags("<p>Hello <b>world</b></p>"))
	assert.Equal(t, "a < b & c", StripTags("a &lt; b &amp; c"))
	assert.Equal(t, "plain", StripTags("plain"))
	assert.Equal(t, "", CleanInput("  <br/><p> </p>  "))
	assert.Equal(t, "hi", CleanInput(" <i>hi</i> "))
}

package workflow

import (
	"strings"

	"github.com/jatanrathod13/researcher/internal/schema"
	"github.com/jatanrathod13/researcher/internal/session"
)

const defaultArtifactName = "research_report.md"

// Artifact renders a session's result as a downloadable markdown document.
// The filename derives from the report title with spaces replaced by
// underscores; degraded and pending results use a default name.
func Artifact(snap session.Snapshot) (filename, mimeType string, body []byte) {
	filename = defaultArtifactName
	mimeType = "text/markdown; charset=utf-8"

	if snap.Result == nil {
		return filename, mimeType, nil
	}

	if snap.Result.Kind == schema.ResultReport && snap.Result.Report != nil {
		if title := strings.TrimSpace(snap.Result.Report.Title); title != "" {
			filename = strings.ReplaceAll(title, " ", "_") + ".md"
		}
	}
	return filename, mimeType, []byte(snap.Result.Text())
}

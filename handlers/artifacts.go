package handlers

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"segbridge/models"
	"segbridge/report"
)

// GetRunVolumes returns the parsed region volumes of a finished run, enriched
// with label metadata and summary statistics. The CSV is preferred when it
// was kept; otherwise the data is gone with the CSV and the spreadsheet is
// the remaining artifact.
func GetRunVolumes(c *gin.Context) {
	run, httpOK := runFromParam(c)
	if !httpOK {
		return
	}
	if run.Status != models.StatusSucceeded {
		fail(c, http.StatusConflict, CodeConflict, "Run has no volumes", "status is "+run.Status)
		return
	}
	if run.CSVPath == "" {
		fail(c, http.StatusNotFound, CodeNotFound, "Volumes CSV was not kept",
			"start runs with keep_csv to query volumes; the spreadsheet artifact remains")
		return
	}

	subject, regions, err := report.ParseVolumesCSV(run.CSVPath)
	if err != nil {
		fail(c, http.StatusInternalServerError, CodeInternal, "Failed to parse volumes", err.Error())
		return
	}

	ok(c, gin.H{
		"subject": subject,
		"regions": regions,
		"summary": report.SummarizeRegions(subject, regions),
	})
}

// DownloadArtifact streams one run artifact. The :name route parameter is
// segmentation, report, or csv.
func DownloadArtifact(c *gin.Context) {
	run, httpOK := runFromParam(c)
	if !httpOK {
		return
	}

	var path string
	switch c.Param("name") {
	case "segmentation":
		path = run.SegmentationPath
	case "report":
		path = run.ReportPath
	case "csv":
		path = run.CSVPath
	default:
		fail(c, http.StatusBadRequest, CodeInvalidRequest, "Unknown artifact",
			"expected segmentation, report, or csv")
		return
	}

	if path == "" {
		fail(c, http.StatusNotFound, CodeNotFound, "Artifact not recorded for this run", nil)
		return
	}
	if _, err := os.Stat(path); err != nil {
		fail(c, http.StatusNotFound, CodeNotFound, "Artifact file is gone", path)
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}

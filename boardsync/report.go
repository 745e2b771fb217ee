package boardsync

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/ledgersync_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// SyncRunReportHandler streams one run's per-record results as an xlsx file.
func SyncRunReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetMirrorDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		run, _, err := loadRunWithErrors(c, db, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		defer f.Close()
		const sheet = "Sheet1"

		headers := []string{"Document Key", "Status", "Item Id", "Group Id", "Error"}
		for i, header := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, header)
		}
		for row, detail := range decodeDetails(run.DetailsJSON) {
			values := []interface{}{detail.DocumentKey, detail.Status, detail.ItemId, detail.GroupId, detail.Error}
			for col, value := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				f.SetCellValue(sheet, cell, value)
			}
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=sync-run-%d.xlsx", run.ID))
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "report.go", "SyncRunReportHandler", "write xlsx", run.ID, err)
		}
	}
}

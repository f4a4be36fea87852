package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lifecycle/version"
)

var startTime = time.Now()

// Version reports build information and uptime.
func Version(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := version.Current()
		c.JSON(http.StatusOK, gin.H{
			"service":    service,
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"git_branch": v.GitBranch,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
			"release":    v.Release(),
			"dirty":      v.Dirty,
			"uptime":     time.Since(startTime).Round(time.Second).String(),
		})
	}
}

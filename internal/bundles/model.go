package bundles

import (
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
)

// Bundle is a stored mock-PDF request together with its generation job state.
type Bundle struct {
	ID            string
	UserID        string
	Strategy      mockpdf.Strategy
	RequiredCount int
	ProductIDs    []string
	Amount        int64
	Currency      string
	IsFree        bool
	UsedAllowance bool
	Paid          bool
	Status        mockpdf.JobStatus
	ContactName   string
	ContactPhone  string
	DownloadKey   string
	PageCount     int
	ErrorCode     string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

// Payable reports whether the bundle still needs a captured payment before generation.
func (b Bundle) Payable() bool {
	return !b.IsFree && !b.Paid && b.Amount > 0
}

// DownloadPath is the API path of the finished artifact.
func DownloadPath(jobID string) string {
	return "/api/v1/mock-pdf/requests/" + jobID + "/download"
}

// Job projects the bundle onto the status shape clients poll.
func (b Bundle) Job() mockpdf.Job {
	j := mockpdf.Job{ID: b.ID, Status: b.Status, Error: b.ErrorMessage}
	if !b.UpdatedAt.IsZero() {
		t := b.UpdatedAt
		j.UpdatedAt = &t
	}
	if b.Status == mockpdf.StatusCompleted {
		j.ArtifactRef = DownloadPath(b.ID)
	}
	return j
}

// StatusUpdate moves a bundle forward. Nil fields are left unchanged.
type StatusUpdate struct {
	Status       mockpdf.JobStatus
	DownloadKey  *string
	PageCount    *int
	ErrorCode    *string
	ErrorMessage *string
	CompletedAt  *time.Time
}

package ledger

import (
	"fmt"

	"github.com/efreitasn/commandledger/internal/domain"
)

// Attach stores q as the certification section of a command that is
// still being created. A nil q leaves the command without
// certification, which is different from an empty one.
func Attach(c *domain.Command, q *domain.Quality) error {
	if c.Status != "" {
		return fmt.Errorf("quality of %s can only be attached at creation", c.CommandID)
	}
	c.Quality = q.Clone()
	return nil
}

// AppendCertificate records account as a certificate signer of c.
func AppendCertificate(c *domain.Command, account domain.AccountID) error {
	return appendSignOff(c, domain.CertificationCertificate, account)
}

// AppendStage records account as a process stage acknowledgement of c.
func AppendStage(c *domain.Command, account domain.AccountID) error {
	return appendSignOff(c, domain.CertificationStage, account)
}

// appendSignOff appends to the end of the selected sequence. Nothing is
// ever removed or reordered, and the same account may sign repeatedly.
func appendSignOff(c *domain.Command, kind domain.CertificationKind, account domain.AccountID) error {
	if c.Quality == nil {
		return fmt.Errorf("%w: command %s has no quality section", domain.ErrNotFound, c.CommandID)
	}
	switch kind {
	case domain.CertificationCertificate:
		c.Quality.Certificate = append(c.Quality.Certificate, account)
	case domain.CertificationStage:
		c.Quality.Stage = append(c.Quality.Stage, account)
	default:
		return &domain.ValidationError{
			Message: fmt.Sprintf("unknown certification kind %q, must be one of: certificate, stage", kind),
		}
	}
	if c.Status == domain.CommandStatusCreated {
		c.Status = domain.CommandStatusCertificationInProgress
	}
	return nil
}

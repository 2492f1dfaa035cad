package scheduler

import (
	"context"
	"fmt"

	creditsdomain "github.com/globalping/backoffice/internal/credits/domain"
	"go.uber.org/zap"
)

// AdoptedProbeCreditsJob grants each online adopted probe its daily credits.
// The per-probe, per-day dedup key makes reruns within the same day no-ops.
func (s *Scheduler) AdoptedProbeCreditsJob(ctx context.Context) error {
	probes, err := s.probeRepo.ListAdoptedOnline(ctx, s.db)
	if err != nil {
		return err
	}

	day := s.clock.Now().UTC().Format("2006-01-02")
	var firstErr error
	granted := 0
	for _, probe := range probes {
		name := probe.IP
		if probe.Name != nil && *probe.Name != "" {
			name = *probe.Name
		}

		created, err := s.creditsSvc.Add(ctx, creditsdomain.AddRequest{
			UserID:       *probe.UserID,
			Amount:       creditsdomain.AdoptedProbeCreditsPerDay,
			Reason:       creditsdomain.ReasonAdoptedProbe,
			AdoptedProbe: probe.ID,
			Meta: map[string]any{
				"id":   probe.ID.String(),
				"name": name,
			},
			DedupKey: fmt.Sprintf("adopted_probe:%d:%s", probe.ID, day),
		})
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if created {
			granted++
		}
	}

	if granted > 0 {
		s.log.Info("granted adopted probe credits", zap.Int("probes", granted))
	}
	return firstErr
}

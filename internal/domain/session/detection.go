package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/vibescape/vibescape-backend/internal/domain/playback"
)

// StartDetection begins an emotion scan. The detected label is fed back into
// the session as EmotionDetected. A scan already in progress is restarted.
func (s *Session) StartDetection(ctx context.Context) error {
	if s.detector == nil {
		return ErrNoDetector
	}
	return s.post(ctx, func(loopCtx context.Context) {
		if s.stopDetector != nil {
			s.stopDetector()
		}
		scanCtx, cancel := context.WithCancel(loopCtx)
		s.stopDetector = cancel
		s.scanSeq++

		log.Info().Str("session", s.id).Msg("Emotion scan started")
		go s.scan(scanCtx, s.scanSeq)
	})
}

func (s *Session) scan(ctx context.Context, seq int) {
	label, err := s.detector.Detect(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Warn().Err(err).Str("session", s.id).Msg("Emotion scan failed")
		s.post(ctx, func(context.Context) {
			if seq != s.scanSeq || s.stopDetector == nil {
				return
			}
			s.stopDetector()
			s.stopDetector = nil
			s.publish(playback.Update{
				State: s.ctrl.Snapshot(),
				Instructions: []playback.Instruction{
					{Kind: playback.Notice, Message: "Emotion detection failed"},
				},
			})
		})
		return
	}

	s.post(ctx, func(context.Context) {
		if seq != s.scanSeq || s.stopDetector == nil {
			return
		}
		s.stopDetector()
		s.stopDetector = nil
		u, err := s.ctrl.EmotionDetected(label)
		if err != nil {
			log.Warn().Err(err).Str("session", s.id).Str("emotion", label).Msg("Emotion playback failed")
		}
		s.publish(u)
	})
}

// StopDetection cancels a running scan and leaves emotion mode.
func (s *Session) StopDetection(ctx context.Context) (playback.Update, error) {
	return s.Exec(ctx, func(c *playback.Controller) (playback.Update, error) {
		if s.stopDetector != nil {
			s.stopDetector()
			s.stopDetector = nil
		}
		return c.StopEmotionMode(), nil
	})
}

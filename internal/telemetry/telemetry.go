// Package telemetry sends gameplay events to the collector without blocking
// the caller. Failures are logged and dropped.
package telemetry

import (
	"context"
	"sync"
	"time"

	constants "github.com/CodeAndHammer/wordsprint/internal/constants"
	models "github.com/CodeAndHammer/wordsprint/internal/models"
	util "github.com/CodeAndHammer/wordsprint/internal/util"
)

type Transport interface {
	Send(ctx context.Context, req models.TrackRequest) error
}

type Client struct {
	transport    Transport
	experimentID string
	userID       string
	timeout      time.Duration
	wg           sync.WaitGroup

	// OnResult, when set, is called after every send attempt.
	OnResult func(req models.TrackRequest, err error)
}

func New(transport Transport, experimentID, userID string) *Client {
	return &Client{
		transport:    transport,
		experimentID: experimentID,
		userID:       userID,
		timeout:      10 * time.Second,
	}
}

// Dispatch sends req on its own goroutine and returns immediately.
func (c *Client) Dispatch(req models.TrackRequest) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		err := c.transport.Send(ctx, req)
		if err != nil {
			util.LogWarn("Error tracking %s for %s: %v", req.ActionType, req.UserID, err)
		}
		if c.OnResult != nil {
			c.OnResult(req, err)
		}
	}()
}

// Wait blocks until every dispatched event has been attempted.
func (c *Client) Wait() {
	c.wg.Wait()
}

func (c *Client) Started(variant models.Variant) {
	c.Dispatch(c.base(variant, constants.ActionStarted, false))
}

func (c *Client) Repeated(variant models.Variant) {
	c.Dispatch(c.base(variant, constants.ActionRepeated, false))
}

func (c *Client) Completed(o models.Outcome) {
	c.Dispatch(c.outcome(o))
}

func (c *Client) Failed(o models.Outcome) {
	o.Success = false
	c.Dispatch(c.outcome(o))
}

func (c *Client) base(variant models.Variant, action string, converted bool) models.TrackRequest {
	return models.TrackRequest{
		ExperimentID: c.experimentID,
		UserID:       c.userID,
		Variant:      variant,
		Converted:    converted,
		ActionType:   action,
		Metadata:     &models.TrackMetadata{PuzzleType: constants.PuzzleTypeWordSearch},
	}
}

func (c *Client) outcome(o models.Outcome) models.TrackRequest {
	req := c.base(o.Variant, constants.ActionCompleted, o.Success)
	seconds := float64(o.CompletionTimeMs) / 1000
	success := o.Success
	found := len(o.FoundWords)
	guesses := o.GuessCount
	req.CompletionTime = &seconds
	req.Success = &success
	req.CorrectWordsCount = &found
	req.TotalGuessesCount = &guesses
	req.Metadata.FoundWords = append([]string(nil), o.FoundWords...)
	if !o.Success {
		req.Metadata.FailureReason = constants.FailureReasonTimeout
	}
	return req
}

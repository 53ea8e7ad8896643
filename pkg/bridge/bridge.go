// Package bridge performs one exchange against the upstream agent
// service: encode the conversation packet, POST it with a leased bearer
// token over a rotated egress route, assemble the SSE frame stream, and
// deliver decoded events in arrival order. Credential and route failover
// applies only until the first event; once output has begun, a failure
// is reported in-band and never retried.
package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"heliox-hq/charon/pkg/egress"
	"heliox-hq/charon/pkg/failover"
	"heliox-hq/charon/pkg/pool"
	"heliox-hq/charon/pkg/wire"
)

// maxErrorBody bounds how much of a failed response is read for
// classification and logging.
const maxErrorBody = 8 * 1024

// Handler receives each decoded event, in the exact order the upstream
// produced it. Returning an error aborts the exchange without retry.
type Handler func(ev *wire.Event) error

// Bridge drives exchanges through the failover orchestrator.
type Bridge struct {
	cfg    Config
	orch   *failover.Orchestrator
	logger *slog.Logger
}

// New creates a bridge over the orchestrator.
func New(orch *failover.Orchestrator, cfg Config) *Bridge {
	cfg.applyDefaults()
	return &Bridge{
		cfg:    cfg,
		orch:   orch,
		logger: slog.Default().With("component", "bridge"),
	}
}

// Stream performs one streamed exchange. The packet is encoded once;
// state is updated in place as identifier-bearing frames arrive. A
// *StreamError return means events already reached the handler and the
// caller must terminate its own output in-band instead of failing the
// whole request.
func (b *Bridge) Stream(ctx context.Context, pkt *wire.ConversationPacket, state *State, h Handler) error {
	raw, err := wire.EncodePacket(pkt)
	if err != nil {
		// Encoding failures are a logic bug or schema drift; retrying
		// cannot fix them.
		return err
	}

	var (
		delivered  int
		midErr     error
		handlerErr error
	)

	doErr := b.orch.Do(ctx, func(ctx context.Context, cred *pool.Credential, client *http.Client, route egress.Route) error {
		delivered = 0
		midErr = nil
		handlerErr = nil

		req, err := b.newRequest(ctx, cred.AccessToken, raw)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return &failover.AttemptError{
				Outcome:    failover.ClassifyResponse(resp.StatusCode, body),
				StatusCode: resp.StatusCode,
				Route:      route.Label,
				Cause:      &ProtocolError{StatusCode: resp.StatusCode, Body: string(body)},
			}
		}

		fr := newFrameReader(resp.Body)
		defer fr.stop()
		for {
			payload, done, err := fr.next(ctx, b.cfg.HeartbeatTimeout)
			if err != nil {
				if delivered == 0 {
					return &failover.AttemptError{
						Outcome: failover.OutcomeTransient,
						Route:   route.Label,
						Cause:   err,
					}
				}
				// Output already left the building. Report in-band.
				midErr = &StreamError{Delivered: delivered, Cause: err}
				return nil
			}
			if done {
				break
			}

			frame, err := wire.DecodePayload(payload)
			if err != nil {
				b.logger.Debug("skipping undecodable frame payload", "error", err)
				continue
			}
			ev, err := wire.DecodeEvent(frame)
			if err != nil {
				b.logger.Debug("skipping undecodable frame", "error", err)
				continue
			}

			state.Observe(ev)
			delivered++
			if err := h(ev); err != nil {
				handlerErr = err
				return nil
			}
		}

		if delivered == 0 {
			return &failover.AttemptError{
				Outcome: failover.OutcomeNoEvents,
				Route:   route.Label,
				Cause:   errors.New("stream closed without events"),
			}
		}
		return nil
	})

	switch {
	case doErr != nil:
		return doErr
	case handlerErr != nil:
		return handlerErr
	case midErr != nil:
		return midErr
	default:
		return nil
	}
}

// Collect performs one exchange and returns the full event sequence, for
// the unary path. On a mid-stream failure the events received before the
// failure are returned alongside the *StreamError.
func (b *Bridge) Collect(ctx context.Context, pkt *wire.ConversationPacket, state *State) ([]*wire.Event, error) {
	var evs []*wire.Event
	err := b.Stream(ctx, pkt, state, func(ev *wire.Event) error {
		evs = append(evs, ev)
		return nil
	})
	return evs, err
}

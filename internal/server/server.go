package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nupi-ai/plugin-asr-local-april/internal/asr"
	"github.com/nupi-ai/plugin-asr-local-april/internal/config"
)

// MaxPCMChunkBytes limits the size of a single PCM chunk to prevent
// memory spikes from oversized messages. 1 MB ≈ 32 seconds at 16 kHz mono s16le.
// This is also enforced at gRPC transport level via MaxRecvMsgSize.
const MaxPCMChunkBytes = 1 << 20

// eventBuffer is how many events may wait for the sender per stream.
const eventBuffer = 64

// Server implements SpeechRecognitionServer. All streams share one model;
// each stream owns its own session.
type Server struct {
	cfg   config.Config
	log   *slog.Logger
	model *asr.Model
}

// New returns a Server recognising with model. The caller keeps ownership of
// model and must close it after the gRPC server has stopped.
func New(cfg config.Config, logger *slog.Logger, model *asr.Model) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:   cfg,
		log:   logger.With("component", "server"),
		model: model,
	}
}

// Recognize implements the bidirectional streaming RPC.
func (s *Server) Recognize(stream RecognizeServer) error {
	ctx := stream.Context()
	mode := s.cfg.SessionMode()
	streamID := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(MetadataMode); len(v) > 0 && strings.TrimSpace(v[0]) != "" {
			m, err := asr.ParseMode(strings.ToLower(strings.TrimSpace(v[0])))
			if err != nil {
				return status.Error(codes.InvalidArgument, err.Error())
			}
			mode = m
		}
		if v := md.Get(MetadataStreamID); len(v) > 0 {
			streamID = strings.TrimSpace(v[0])
		}
	}
	if streamID == "" {
		streamID = uuid.NewString()
	}
	log := s.log.With("stream_id", streamID, "mode", mode.String())

	// Events are handed to a single sender; the handler never blocks past
	// the end of the stream.
	events := make(chan asr.Event, eventBuffer)
	senderDone := make(chan error, 1)
	go func() {
		var sendErr error
		for ev := range events {
			if sendErr != nil {
				continue
			}
			msg, err := eventStruct(streamID, ev)
			if err != nil {
				log.Error("encode event failed", "error", err)
				sendErr = status.Error(codes.Internal, "event encoding failed")
				continue
			}
			sendErr = stream.Send(msg)
		}
		senderDone <- sendErr
	}()
	handler := func(ev asr.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}

	session, err := asr.NewSession(s.model, mode, handler,
		asr.WithQueueDuration(time.Duration(s.cfg.QueueMs)*time.Millisecond),
		asr.WithLogger(log),
	)
	if err != nil {
		close(events)
		<-senderDone
		log.Error("session creation failed", "error", err)
		return status.Error(codes.Unavailable, "recognition session unavailable")
	}
	log.Info("stream opened")

	finish := func(flush bool) error {
		var flushErr error
		if flush {
			flushErr = session.Flush(ctx)
		}
		session.Close()
		close(events)
		sendErr := <-senderDone
		log.Info("stream closed")
		if flushErr != nil {
			return status.FromContextError(flushErr).Err()
		}
		return sendErr
	}

	for {
		req, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return finish(true)
			}
			finish(false)
			return err
		}

		pcm := req.GetValue()
		if len(pcm) > MaxPCMChunkBytes {
			finish(false)
			return status.Errorf(codes.InvalidArgument,
				"PCM chunk too large: %d bytes (max %d)", len(pcm), MaxPCMChunkBytes)
		}
		if len(pcm) == 0 {
			if err := session.Flush(ctx); err != nil {
				finish(false)
				return status.FromContextError(err).Err()
			}
			continue
		}
		if err := session.Feed(pcm); err != nil {
			finish(false)
			return status.Error(codes.Internal, "audio processing failed")
		}
	}
}

// eventStruct renders ev as the response message. Token text is not
// guaranteed to be UTF-8, so invalid sequences become U+FFFD.
func eventStruct(streamID string, ev asr.Event) (*structpb.Struct, error) {
	tokens := make([]any, len(ev.Tokens))
	var text strings.Builder
	for i, t := range ev.Tokens {
		tokText := strings.ToValidUTF8(t.Text, "\uFFFD")
		text.WriteString(tokText)
		tokens[i] = map[string]any{
			"text":          tokText,
			"logprob":       float64(t.LogProb),
			"time_ms":       float64(t.Time.Milliseconds()),
			"word_boundary": t.Flags == asr.WordBoundary,
			"sentence_end":  t.Flags == asr.SentenceEnd,
		}
	}
	return structpb.NewStruct(map[string]any{
		"stream_id": streamID,
		"type":      ev.Type.String(),
		"text":      text.String(),
		"tokens":    tokens,
	})
}

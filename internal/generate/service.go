package generate

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/lectiolabs/lectio-core/internal/book"
	"github.com/lectiolabs/lectio-core/internal/bus"
	"github.com/lectiolabs/lectio-core/internal/config"
	"github.com/lectiolabs/lectio-core/internal/eventstore"
	"github.com/lectiolabs/lectio-core/internal/protocol"
)

// Service exposes the orchestrator on the bus: documents come in,
// section commands drive generation, progress and results go back out.
// State changes are also appended to the event store timeline.
type Service struct {
	cfg    config.Config
	bus    *bus.Client
	orch   *Orchestrator
	store  *eventstore.Store
	subs   []*nats.Subscription
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger

	mu    sync.Mutex
	docID string
}

func NewService(parent context.Context, cfg config.Config, busClient *bus.Client, orch *Orchestrator, store *eventstore.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		cfg:    cfg,
		bus:    busClient,
		orch:   orch,
		store:  store,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(slog.String("component", "generate-service")),
	}
	orch.OnProgress = s.publishProgress
	orch.OnDone = s.publishDone
	return s
}

func (s *Service) Start() error {
	handlers := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{protocol.SubjectDocSubmit, s.handleDocSubmit},
		{protocol.SubjectSectionGenerate, s.handleGenerate},
		{protocol.SubjectSectionCancel, s.handleCancel},
		{protocol.SubjectSectionPause, s.handlePause},
		{protocol.SubjectSectionResume, s.handleResume},
		{protocol.SubjectBatchStart, s.handleBatchStart},
		{protocol.SubjectBatchStop, s.handleBatchStop},
		{protocol.SubjectBatchPause, s.handleBatchPause},
		{protocol.SubjectBatchResume, s.handleBatchResume},
		{protocol.SubjectBatchMerge, s.handleBatchMerge},
	}
	for _, h := range handlers {
		sub, err := s.bus.Conn().Subscribe(h.subject, h.handler)
		if err != nil {
			return err
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

func (s *Service) Close() {
	s.cancel()
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return len(s.subs) > 0 }

func (s *Service) handleDocSubmit(msg *nats.Msg) {
	var req protocol.DocumentSubmit
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode document submit", slogError(err))
		return
	}
	sections := s.orch.SubmitDocument(req.Title, req.Text)

	docID := req.DocumentID
	if docID == "" {
		docID = "doc-" + uuid.NewString()
	}
	s.mu.Lock()
	s.docID = docID
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.AppendDocument(s.ctx, docID, req.Title, len(sections)); err != nil {
			s.logger.Warn("failed to record document", slogError(err))
		}
	}

	s.publishSections(sections)
}

func (s *Service) handleGenerate(msg *nats.Msg) {
	var cmd protocol.SectionCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		s.logger.Warn("failed to decode section command", slogError(err))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.orch.Generate(s.ctx, cmd.SectionID); err != nil {
			s.logger.Warn("section generation ended with error",
				slog.String("section", cmd.SectionID), slogError(err))
		}
	}()
}

func (s *Service) handleCancel(msg *nats.Msg) {
	if cmd, ok := s.decodeCommand(msg); ok {
		s.orch.Cancel(cmd.SectionID)
	}
}

func (s *Service) handlePause(msg *nats.Msg) {
	if cmd, ok := s.decodeCommand(msg); ok {
		s.orch.Pause(cmd.SectionID)
	}
}

func (s *Service) handleResume(msg *nats.Msg) {
	if cmd, ok := s.decodeCommand(msg); ok {
		s.orch.Resume(cmd.SectionID)
	}
}

func (s *Service) decodeCommand(msg *nats.Msg) (protocol.SectionCommand, bool) {
	var cmd protocol.SectionCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		s.logger.Warn("failed to decode section command", slogError(err))
		return cmd, false
	}
	return cmd, true
}

func (s *Service) handleBatchStart(msg *nats.Msg) {
	var req protocol.BatchStart
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode batch start", slogError(err))
		return
	}
	continueOnError := s.cfg.Generate.ContinueOnError
	if req.ContinueOnError != nil {
		continueOnError = *req.ContinueOnError
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.orch.RunBatch(s.ctx, req.SectionIDs, continueOnError); err != nil {
			s.logger.Warn("batch run ended with error", slogError(err))
		}
	}()
}

func (s *Service) handleBatchStop(msg *nats.Msg) {
	s.orch.StopBatch()
}

func (s *Service) handleBatchPause(msg *nats.Msg) {
	s.orch.PauseBatch()
}

func (s *Service) handleBatchResume(msg *nats.Msg) {
	s.orch.ResumeBatch()
}

func (s *Service) handleBatchMerge(msg *nats.Msg) {
	var req protocol.BatchMerge
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode batch merge", slogError(err))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		merged, err := s.orch.MergeSections(req.SectionIDs)
		if err != nil {
			s.logger.Warn("merge failed", slogError(err))
			return
		}
		s.publish(protocol.SubjectBatchMerged, merged)
	}()
}

func (s *Service) publishSections(sections []*book.Section) {
	snapshots := make([]protocol.SectionSnapshot, 0, len(sections))
	for _, sec := range sections {
		snapshots = append(snapshots, protocol.SectionSnapshot{
			SectionID:    sec.ID,
			Index:        sec.Index,
			Title:        sec.Title,
			CharCount:    sec.CharCount,
			Status:       string(sec.Status),
			Progress:     sec.Progress,
			EstimatedSec: float64(sec.EstimatedSec),
		})
	}
	s.publish(protocol.SubjectDocSections, snapshots)
}

func (s *Service) publishProgress(msg protocol.SectionProgress) {
	s.publish(protocol.SubjectSectionProgress, msg)
	s.record(msg.SectionID, "section."+msg.Status, msg)
}

func (s *Service) publishDone(msg protocol.SectionDone) {
	s.publish(protocol.SubjectSectionDone, msg)
	s.record(msg.SectionID, "section.done", msg)
}

func (s *Service) record(sectionID, eventType string, v any) {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	docID := s.docID
	s.mu.Unlock()
	if docID == "" {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.store.AppendEvent(s.ctx, eventstore.Event{
		DocumentID: docID,
		SectionID:  sectionID,
		Type:       eventType,
		Payload:    payload,
	}); err != nil {
		s.logger.Warn("failed to record event", slogError(err))
	}
}

func (s *Service) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to marshal bus message", slogError(err))
		return
	}
	if err := s.bus.Conn().Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish bus message",
			slog.String("subject", subject), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

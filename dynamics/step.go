package dynamics

import (
	"fmt"

	"github.com/pthm-cable/bgdynamics/snapshot"
	"github.com/pthm-cable/bgdynamics/telemetry"
)

// step runs one simulation step and posts the resulting snapshot.
func (s *Server) step(msg *StepMessage) {
	defer s.finishStep()

	s.perf.StartStep()
	s.camPos = msg.CameraPos
	if msg.SetQuality && msg.Quality.Valid() {
		s.tier = msg.Quality
	}
	dtMS := min(max(msg.DeltaMS, 0), s.cfg.Worker.MaxStepMS)
	dt := float32(dtMS / 1000)

	s.synchronize(msg)

	s.perf.StartPhase(telemetry.PhaseShadows)
	s.updateShadows()

	s.phys.ClearContacts()

	s.perf.StartPhase(telemetry.PhaseFields)
	for _, e := range s.fields.Update(s.clockMS) {
		s.destroyField(e)
	}

	s.perf.StartPhase(telemetry.PhaseChunks)
	for _, e := range s.chunks.Update(s.world, s.clockMS, dt) {
		s.destroyChunk(e)
	}

	s.perf.StartPhase(telemetry.PhaseTendrils)
	s.lightList = s.lightList[:0]
	for _, l := range s.lights {
		s.lightList = append(s.lightList, *l)
	}
	for _, e := range s.tendrils.Update(s.world, s.clockMS, dt, s.fields, s.lightList) {
		s.destroyTendril(e)
	}

	s.perf.StartPhase(telemetry.PhaseFuses)
	s.updateFuses(dt)
	s.parts.Update(dt)

	s.perf.StartPhase(telemetry.PhasePhysics)
	s.phys.Step(dt)

	s.perf.StartPhase(telemetry.PhaseSnapshot)
	snap := s.buildSnapshot()
	s.deliver(snap)

	s.clockMS += dtMS
	s.steps++

	s.perf.StartPhase(telemetry.PhasePrecalc)
	s.cache.Precalc()
	s.perf.EndStep()

	s.publish()
	if s.steps%perfPublishEvery == 0 {
		ps := s.perf.Stats()
		s.perfStats.Store(&ps)
	}
	if every := uint64(s.cfg.Telemetry.LogEverySteps); every > 0 && s.steps%every == 0 {
		s.log.Info("bgdynamics", "population", s.Counts(), "perf", s.PerfStats())
	}
}

// synchronize copies the client fields carried by msg into the worker views.
// Entries for closed entities carry nil and are skipped. Desync errors are
// reported once every lock is released.
func (s *Server) synchronize(msg *StepMessage) {
	errs := s.syncShadows(msg, nil)
	errs = s.syncFuses(msg, errs)
	errs = s.syncLights(msg, errs)
	for _, err := range errs {
		s.fatal(err)
	}
}

func (s *Server) syncShadows(msg *StepMessage, errs []error) []error {
	s.shadowMu.Lock()
	defer s.shadowMu.Unlock()
	for _, e := range msg.Shadows {
		if e.View == nil {
			continue
		}
		w, ok := s.shadows[e.ID]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %d in step", ErrUnknownShadow, e.ID))
			continue
		}
		w.Synchronize(*e.View)
	}
	return errs
}

func (s *Server) syncFuses(msg *StepMessage, errs []error) []error {
	s.fuseMu.Lock()
	defer s.fuseMu.Unlock()
	for _, e := range msg.Fuses {
		if e.View == nil {
			continue
		}
		w, ok := s.fuses[e.ID]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %d in step", ErrUnknownFuse, e.ID))
			continue
		}
		w.Synchronize(*e.View)
	}
	return errs
}

func (s *Server) syncLights(msg *StepMessage, errs []error) []error {
	s.lightMu.Lock()
	defer s.lightMu.Unlock()
	for _, e := range msg.Lights {
		if e.View == nil {
			continue
		}
		w, ok := s.lights[e.ID]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %d in step", ErrUnknownVolumeLight, e.ID))
			continue
		}
		w.Synchronize(*e.View)
	}
	return errs
}

func (s *Server) updateShadows() {
	s.shadowMu.Lock()
	defer s.shadowMu.Unlock()
	s.shadowList = s.shadowList[:0]
	for _, w := range s.shadows {
		s.shadowList = append(s.shadowList, w)
	}
	s.shadowSys.Update(s.shadowList)
}

func (s *Server) updateFuses(dt float32) {
	s.fuseMu.Lock()
	defer s.fuseMu.Unlock()
	s.fuseList = s.fuseList[:0]
	for _, w := range s.fuses {
		s.fuseList = append(s.fuseList, w)
	}
	s.fuseSys.Update(s.fuseList, dt, s.parts)
}

// deliver hands the snapshot to the client goroutine. It is dropped when no
// sink is installed.
func (s *Server) deliver(snap *snapshot.Snapshot) {
	sink := s.sink.Load()
	if sink == nil {
		return
	}
	fn := *sink
	s.client.Post(func() { fn(snap) })
}

package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/packmind/internal/artifact"
	"github.com/sells-group/packmind/internal/mailer"
	"github.com/sells-group/packmind/internal/predictor"
	"github.com/sells-group/packmind/internal/reminder"
	"github.com/sells-group/packmind/internal/store"
	"github.com/sells-group/packmind/internal/trainer"
)

// appEnv bundles the wired subsystems commands operate on.
type appEnv struct {
	Store     store.Store
	Artifacts artifact.Store
	Trainer   *trainer.Trainer
	Predictor *predictor.Predictor
	Mailer    *mailer.Mailer
	Reminder  *reminder.Job
}

// initApp opens the store and wires the training, prediction and reminder
// subsystems from the loaded config.
func initApp(ctx context.Context) (*appEnv, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	artifacts, err := artifact.NewFSStore(cfg.Models.Dir)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init artifact store")
	}

	tr := trainer.New(st, artifacts, cfg.Train)
	pr := predictor.New(artifacts)
	m := mailer.New(cfg.SMTP)
	job := reminder.New(st, tr, pr, m, cfg.Reminder, cfg.Server.BaseURL, cfg.Auth.Secret)

	return &appEnv{
		Store:     st,
		Artifacts: artifacts,
		Trainer:   tr,
		Predictor: pr,
		Mailer:    m,
		Reminder:  job,
	}, nil
}

func (e *appEnv) Close() {
	_ = e.Store.Close()
}

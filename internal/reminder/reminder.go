// Package reminder runs the daily email job: retrain the global model, then
// send each user a digest of the items they are most likely to need today.
package reminder

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/packmind/internal/auth"
	"github.com/sells-group/packmind/internal/config"
	"github.com/sells-group/packmind/internal/mailer"
	"github.com/sells-group/packmind/internal/model"
	"github.com/sells-group/packmind/internal/predictor"
	"github.com/sells-group/packmind/internal/store"
	"github.com/sells-group/packmind/internal/trainer"
)

// Sender delivers one email. *mailer.Mailer satisfies it.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Job wires the stores, trainer, predictor and mailer into the daily
// reminder run.
type Job struct {
	store     store.Store
	trainer   *trainer.Trainer
	predictor *predictor.Predictor
	mailer    Sender
	cfg       config.ReminderConfig
	baseURL   string
	secret    string
	log       *zap.Logger

	// now is swapped out in tests.
	now func() time.Time
}

// New creates the daily reminder job.
func New(st store.Store, tr *trainer.Trainer, pr *predictor.Predictor, m Sender, cfg config.ReminderConfig, baseURL, secret string) *Job {
	return &Job{
		store:     st,
		trainer:   tr,
		predictor: pr,
		mailer:    m,
		cfg:       cfg,
		baseURL:   baseURL,
		secret:    secret,
		log:       zap.L().With(zap.String("component", "reminder")),
		now:       time.Now,
	}
}

// RunOnce executes one reminder cycle. A user whose reminder fails is
// logged and skipped; the cycle only fails outright when the user list
// itself cannot be loaded.
func (j *Job) RunOnce(ctx context.Context) error {
	// Fold overnight label updates into the shared model before scoring.
	// Not having enough data yet is normal and never blocks reminders.
	if trained, err := j.trainer.TrainGlobal(ctx); err != nil {
		j.log.Warn("global retrain failed", zap.Error(err))
	} else if !trained {
		j.log.Info("global retrain skipped, not enough data")
	}

	users, err := j.store.ListUsers(ctx)
	if err != nil {
		return eris.Wrap(err, "reminder: list users")
	}

	sent := 0
	for _, user := range users {
		if err := j.remindUser(ctx, user); err != nil {
			j.log.Error("reminder failed for user",
				zap.Int64("user_id", user.ID),
				zap.Error(err))
			continue
		}
		sent++
	}
	j.log.Info("reminder cycle complete",
		zap.Int("users", len(users)),
		zap.Int("sent", sent))
	return nil
}

func (j *Job) remindUser(ctx context.Context, user model.User) error {
	today := j.now()
	dayCtx, err := j.store.GetOrCreateContext(ctx, user.ID, today)
	if err != nil {
		return eris.Wrap(err, "today context")
	}
	items, err := j.store.ListItems(ctx, user.ID, true)
	if err != nil {
		return eris.Wrap(err, "list items")
	}
	if len(items) == 0 {
		j.log.Debug("no active items, skipping reminder", zap.Int64("user_id", user.ID))
		return nil
	}

	strategy, err := j.predictor.Resolve(user.ID)
	if err != nil {
		return eris.Wrap(err, "resolve strategy")
	}
	predictions := strategy.Predict(dayCtx.Features(), items)

	picks := j.topPicks(predictions)
	if len(picks) == 0 {
		j.log.Debug("nothing above threshold, skipping reminder",
			zap.Int64("user_id", user.ID))
		return nil
	}

	date := store.DateKey(today)
	reminderItems := make([]mailer.ReminderItem, len(picks))
	for i, p := range picks {
		reminderItems[i] = mailer.ReminderItem{
			Prediction:    p,
			MarkPackedURL: j.markPackedURL(user.ID, date, p.ItemID),
		}
	}
	body, err := mailer.ReminderBody(date, reminderItems)
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Packing reminder for %s", date)
	return j.mailer.Send(ctx, user.Email, subject, body)
}

// topPicks keeps predictions above the need threshold, at most TopN. The
// input is already sorted by descending score.
func (j *Job) topPicks(predictions []model.Prediction) []model.Prediction {
	var picks []model.Prediction
	for _, p := range predictions {
		if p.NeedProbability <= j.cfg.MinNeedProbability {
			continue
		}
		picks = append(picks, p)
		if len(picks) == j.cfg.TopN {
			break
		}
	}
	return picks
}

// markPackedURL builds the signed one-click link embedded in the email.
func (j *Job) markPackedURL(userID int64, date string, itemID int64) string {
	token := auth.MarkPackedToken(j.secret, userID, date, itemID)
	query := url.Values{
		"user":  {fmt.Sprint(userID)},
		"date":  {date},
		"item":  {fmt.Sprint(itemID)},
		"token": {token},
	}
	return fmt.Sprintf("%s/email/mark-packed?%s", j.baseURL, query.Encode())
}

// Run fires RunOnce at the configured wall-clock time every day until the
// context is cancelled.
func (j *Job) Run(ctx context.Context) error {
	j.log.Info("reminder scheduler started",
		zap.Int("hour", j.cfg.Hour),
		zap.Int("minute", j.cfg.Minute))
	for {
		wait := j.untilNextFire()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if err := j.RunOnce(ctx); err != nil {
			j.log.Error("reminder cycle failed", zap.Error(err))
		}
	}
}

// untilNextFire returns the duration until the next HH:MM, tomorrow if
// today's slot already passed.
func (j *Job) untilNextFire() time.Duration {
	now := j.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), j.cfg.Hour, j.cfg.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

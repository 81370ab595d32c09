package service

import (
	"context"

	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"

	"github.com/pkg/errors"
)

// TaskCatalog is the reward task set the rewards service works against. It
// is built once at startup and never mutated afterwards.
type TaskCatalog struct {
	tasks []model.RewardTask
	byID  map[string]model.RewardTask
	bonus int
}

func NewTaskCatalog(tasks []model.RewardTask, bonus int) *TaskCatalog {
	c := &TaskCatalog{
		tasks: make([]model.RewardTask, len(tasks)),
		byID:  make(map[string]model.RewardTask, len(tasks)),
		bonus: bonus,
	}
	copy(c.tasks, tasks)
	for _, t := range tasks {
		c.byID[t.ID] = t
	}
	return c
}

// LoadTaskCatalog reads the persisted tasks, seeding the defaults into an empty table first.
func LoadTaskCatalog(ctx context.Context, repo repository.RewardTaskRepository, bonus int) (*TaskCatalog, error) {
	if err := repo.SeedDefaults(ctx); err != nil {
		return nil, errors.Wrap(err, "seed reward tasks")
	}
	tasks, err := repo.FindAll(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load reward tasks")
	}
	return NewTaskCatalog(tasks, bonus), nil
}

func (c *TaskCatalog) Lookup(id string) (model.RewardTask, bool) {
	t, ok := c.byID[id]
	return t, ok
}

func (c *TaskCatalog) Tasks() []model.RewardTask {
	out := make([]model.RewardTask, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *TaskCatalog) RequiredIDs() []string {
	var ids []string
	for _, t := range c.tasks {
		if t.Required {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func (c *TaskCatalog) BonusAmount() int { return c.bonus }

// CompletesRequired reports whether approved covers every required task.
// A catalog without required tasks never completes.
func (c *TaskCatalog) CompletesRequired(approved []string) bool {
	required := c.RequiredIDs()
	if len(required) == 0 {
		return false
	}
	have := make(map[string]struct{}, len(approved))
	for _, id := range approved {
		have[id] = struct{}{}
	}
	for _, id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

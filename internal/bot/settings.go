package bot

import (
	"errors"
	"fmt"

	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/params"
	"github.com/seantiz/simcbot/internal/profile"
)

// adminOnly names settings that only administrators may read or change.
var adminOnly = map[string]bool{
	profile.ThreadsParam: true,
}

// Setting answers a query such as "iterations" with no argument.
func (b *Bot) Setting(sub model.Submitter, name string) (params.Parameter, string, error) {
	p, err := b.lookup(sub, name)
	if err != nil {
		return params.Parameter{}, "", err
	}
	return p, fmt.Sprintf("Currently set to %s %s.", p.Value, name), nil
}

// SetSetting parses raw and stores it as the new value of name. The registry
// is left unchanged on any error.
func (b *Bot) SetSetting(sub model.Submitter, name, raw string) (params.Parameter, string, error) {
	p, err := b.lookup(sub, name)
	if err != nil {
		return params.Parameter{}, "", err
	}

	v, err := params.Parse(p.Value.Kind(), raw)
	if err != nil {
		return params.Parameter{}, "", replyError(err, fmt.Sprintf("Number of %s must be a whole number!", name))
	}

	if err := b.registry.Set(name, v); err != nil {
		return params.Parameter{}, "", settingError(name, err)
	}

	b.logger.Info("setting changed",
		"name", name,
		"value", v.String(),
		"by", sub.ID,
	)

	p.Value = v
	return p, fmt.Sprintf("Number of %s set to %s.", name, v), nil
}

func (b *Bot) lookup(sub model.Submitter, name string) (params.Parameter, error) {
	if name == profile.OutputParam {
		return params.Parameter{}, replyError(params.ErrNotFound, fmt.Sprintf("Unknown setting %q.", name))
	}
	if adminOnly[name] && !b.IsAdmin(sub) {
		return params.Parameter{}, replyError(ErrPermission, NotAdminText)
	}
	p, err := b.registry.Get(name)
	if err != nil {
		return params.Parameter{}, settingError(name, err)
	}
	return p, nil
}

func settingError(name string, err error) error {
	var perr *params.Error
	if !errors.As(err, &perr) {
		return err
	}

	switch {
	case errors.Is(err, params.ErrOutOfRange) && perr.Min != nil && perr.Got.Kind() == params.KindInt:
		n, _ := perr.Got.Int()
		if n < *perr.Min {
			return replyError(err, fmt.Sprintf("Number of %s must be >=%d!", name, *perr.Min))
		}
		if perr.Max != nil {
			return replyError(err, fmt.Sprintf("Number of %s must be <=%d!", name, *perr.Max))
		}
	case errors.Is(err, params.ErrNotFound):
		return replyError(err, fmt.Sprintf("Unknown setting %q.", name))
	case errors.Is(err, params.ErrTypeMismatch):
		return replyError(err, fmt.Sprintf("Setting %s expects a %s.", name, perr.Want))
	}
	return replyError(err, err.Error())
}

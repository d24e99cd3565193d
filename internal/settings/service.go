package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xymail/xymail-backend/pkg/enums"
	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
)

// CleanupFlags toggles the phases of the cleanup sweep.
type CleanupFlags struct {
	ExpiredTempAccounts     bool `json:"cleanupExpiredTempAccounts"`
	DeleteUsedExpiredKeys   bool `json:"cleanupDeleteUsedExpiredCardKeys"`
	DeleteUnusedExpiredKeys bool `json:"cleanupDeleteUnusedExpiredCardKeys"`
	DeleteExpiredEmails     bool `json:"cleanupDeleteExpiredEmails"`
}

// Snapshot is every setting with defaults filled in.
type Snapshot struct {
	DefaultRole         enums.Role `json:"defaultRole"`
	EmailDomains        []string   `json:"emailDomains"`
	AdminContact        string     `json:"adminContact"`
	MaxEmails           int        `json:"maxEmails"`
	CardKeyDefaultDays  int        `json:"cardKeyDefaultDays"`
	RegistrationEnabled bool       `json:"registrationEnabled"`
	CleanupFlags
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	DefaultRole                        *string `json:"defaultRole" validate:"omitempty,oneof=duke knight civilian"`
	EmailDomains                       *string `json:"emailDomains" validate:"omitempty,min=1,max=1024"`
	AdminContact                       *string `json:"adminContact" validate:"omitempty,max=256"`
	MaxEmails                          *int    `json:"maxEmails" validate:"omitempty,min=1,max=1000"`
	CardKeyDefaultDays                 *int    `json:"cardKeyDefaultDays" validate:"omitempty,min=1,max=365"`
	RegistrationEnabled                *bool   `json:"registrationEnabled"`
	CleanupExpiredTempAccounts         *bool   `json:"cleanupExpiredTempAccounts"`
	CleanupDeleteUsedExpiredCardKeys   *bool   `json:"cleanupDeleteUsedExpiredCardKeys"`
	CleanupDeleteUnusedExpiredCardKeys *bool   `json:"cleanupDeleteUnusedExpiredCardKeys"`
	CleanupDeleteExpiredEmails         *bool   `json:"cleanupDeleteExpiredEmails"`
}

// Service exposes typed accessors over a Provider.
type Service struct {
	provider Provider
}

// NewService wraps the provider.
func NewService(provider Provider) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("settings provider is required")
	}
	return &Service{provider: provider}, nil
}

func (s *Service) raw(ctx context.Context, key string) (string, error) {
	value, found, err := s.provider.Get(ctx, key)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read setting "+key)
	}
	if !found {
		return Default(key), nil
	}
	return value, nil
}

func (s *Service) DefaultRole(ctx context.Context) (enums.Role, error) {
	value, err := s.raw(ctx, KeyDefaultRole)
	if err != nil {
		return "", err
	}
	role, parseErr := enums.ParseRole(strings.TrimSpace(value))
	if parseErr != nil || !role.IsAssignableDefault() {
		return enums.RoleCivilian, nil
	}
	return role, nil
}

// EmailDomains returns the configured domains, lower-cased, in stored order.
func (s *Service) EmailDomains(ctx context.Context) ([]string, error) {
	value, err := s.raw(ctx, KeyEmailDomains)
	if err != nil {
		return nil, err
	}
	domains := splitDomains(value)
	if len(domains) == 0 {
		return splitDomains(Default(KeyEmailDomains)), nil
	}
	return domains, nil
}

func (s *Service) AdminContact(ctx context.Context) (string, error) {
	return s.raw(ctx, KeyAdminContact)
}

func (s *Service) MaxEmails(ctx context.Context) (int, error) {
	return s.intSetting(ctx, KeyMaxEmails, 1, 1000)
}

func (s *Service) CardKeyDefaultDays(ctx context.Context) (int, error) {
	return s.intSetting(ctx, KeyCardKeyDefaultDays, 1, 365)
}

func (s *Service) RegistrationEnabled(ctx context.Context) (bool, error) {
	return s.boolSetting(ctx, KeyRegistrationEnabled)
}

// CleanupFlags reads all sweep toggles. A missing flag counts as enabled.
func (s *Service) CleanupFlags(ctx context.Context) (CleanupFlags, error) {
	var flags CleanupFlags
	targets := []struct {
		key string
		dst *bool
	}{
		{KeyCleanupExpiredTempAccounts, &flags.ExpiredTempAccounts},
		{KeyCleanupDeleteUsedExpiredKeys, &flags.DeleteUsedExpiredKeys},
		{KeyCleanupDeleteUnusedExpiredKeys, &flags.DeleteUnusedExpiredKeys},
		{KeyCleanupDeleteExpiredEmails, &flags.DeleteExpiredEmails},
	}
	for _, target := range targets {
		value, err := s.boolSetting(ctx, target.key)
		if err != nil {
			return CleanupFlags{}, err
		}
		*target.dst = value
	}
	return flags, nil
}

// Snapshot returns every setting, falling back to defaults.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	role, err := s.DefaultRole(ctx)
	if err != nil {
		return nil, err
	}
	domains, err := s.EmailDomains(ctx)
	if err != nil {
		return nil, err
	}
	contact, err := s.AdminContact(ctx)
	if err != nil {
		return nil, err
	}
	maxEmails, err := s.MaxEmails(ctx)
	if err != nil {
		return nil, err
	}
	days, err := s.CardKeyDefaultDays(ctx)
	if err != nil {
		return nil, err
	}
	registration, err := s.RegistrationEnabled(ctx)
	if err != nil {
		return nil, err
	}
	flags, err := s.CleanupFlags(ctx)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		DefaultRole:         role,
		EmailDomains:        domains,
		AdminContact:        contact,
		MaxEmails:           maxEmails,
		CardKeyDefaultDays:  days,
		RegistrationEnabled: registration,
		CleanupFlags:        flags,
	}, nil
}

// Update validates the supplied fields and writes only those keys.
func (s *Service) Update(ctx context.Context, input UpdateInput) error {
	writes, err := input.toWrites()
	if err != nil {
		return err
	}
	for _, key := range AllKeys {
		value, ok := writes[key]
		if !ok {
			continue
		}
		if err := s.provider.Put(ctx, key, value); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write setting "+key)
		}
	}
	return nil
}

func (in UpdateInput) toWrites() (map[string]string, error) {
	writes := map[string]string{}
	invalid := map[string]string{}

	if in.DefaultRole != nil {
		role, err := enums.ParseRole(strings.TrimSpace(*in.DefaultRole))
		if err != nil || !role.IsAssignableDefault() {
			invalid["defaultRole"] = "must be one of duke, knight, civilian"
		} else {
			writes[KeyDefaultRole] = string(role)
		}
	}
	if in.EmailDomains != nil {
		domains := splitDomains(*in.EmailDomains)
		if len(domains) == 0 {
			invalid["emailDomains"] = "must list at least one domain"
		} else {
			writes[KeyEmailDomains] = strings.Join(domains, ",")
		}
	}
	if in.AdminContact != nil {
		writes[KeyAdminContact] = strings.TrimSpace(*in.AdminContact)
	}
	if in.MaxEmails != nil {
		if *in.MaxEmails < 1 || *in.MaxEmails > 1000 {
			invalid["maxEmails"] = "must be between 1 and 1000"
		} else {
			writes[KeyMaxEmails] = strconv.Itoa(*in.MaxEmails)
		}
	}
	if in.CardKeyDefaultDays != nil {
		if *in.CardKeyDefaultDays < 1 || *in.CardKeyDefaultDays > 365 {
			invalid["cardKeyDefaultDays"] = "must be between 1 and 365"
		} else {
			writes[KeyCardKeyDefaultDays] = strconv.Itoa(*in.CardKeyDefaultDays)
		}
	}
	putBool(writes, KeyRegistrationEnabled, in.RegistrationEnabled)
	putBool(writes, KeyCleanupExpiredTempAccounts, in.CleanupExpiredTempAccounts)
	putBool(writes, KeyCleanupDeleteUsedExpiredKeys, in.CleanupDeleteUsedExpiredCardKeys)
	putBool(writes, KeyCleanupDeleteUnusedExpiredKeys, in.CleanupDeleteUnusedExpiredCardKeys)
	putBool(writes, KeyCleanupDeleteExpiredEmails, in.CleanupDeleteExpiredEmails)

	if len(invalid) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid settings").WithDetails(invalid)
	}
	return writes, nil
}

func putBool(writes map[string]string, key string, value *bool) {
	if value != nil {
		writes[key] = strconv.FormatBool(*value)
	}
}

func (s *Service) intSetting(ctx context.Context, key string, min, max int) (int, error) {
	value, err := s.raw(ctx, key)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(value))
	if convErr != nil || n < min || n > max {
		n, _ = strconv.Atoi(Default(key))
	}
	return n, nil
}

// boolSetting treats anything other than a literal "false" as true.
func (s *Service) boolSetting(ctx context.Context, key string) (bool, error) {
	value, err := s.raw(ctx, key)
	if err != nil {
		return false, err
	}
	return !strings.EqualFold(strings.TrimSpace(value), "false"), nil
}

func splitDomains(raw string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		domain := strings.ToLower(strings.TrimSpace(part))
		if domain == "" {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, domain)
	}
	return out
}

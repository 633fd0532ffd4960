// Package workflow drives the user provisioning form: the draft request,
// AI-assisted fields and the submission lifecycle.
package workflow

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
)

// ExpiryLayout is the accepted account expiry format
const ExpiryLayout = "2006-01-02"

// UserCreator submits provisioning requests to the backend
type UserCreator interface {
	CreateUser(ctx context.Context, req domain.UserCreationRequest) domain.Response[domain.ServerUser]
}

// Assistant drafts field values; implementations must never block the form
// on an unavailable service.
type Assistant interface {
	SuggestUsername(ctx context.Context, fullName string) string
	GenerateWelcomeEmail(ctx context.Context, fullName, username, serverName string) string
}

// ServerLookup resolves a server ID against the loaded fleet
type ServerLookup interface {
	Server(id string) (domain.Server, bool)
}

// Fields carries user input for the draft
type Fields struct {
	ServerID       string
	Username       string
	FullName       string
	Email          string
	Role           string
	SSHKey         string
	Sudo           bool
	Expiry         string
	WelcomeMessage string
}

// Form is the provisioning workflow for one session. It is safe for
// concurrent use; backend and assistant calls run without holding the lock.
type Form struct {
	creator   UserCreator
	assistant Assistant
	servers   ServerLookup
	logger    *slog.Logger

	// OnSuccess runs after the backend accepts a submission. The caller uses
	// it to clear the draft and navigate away.
	OnSuccess func(created domain.ServerUser)

	mu              sync.Mutex
	draft           domain.UserCreationRequest
	suggesting      bool
	generatingEmail bool
	submitting      bool
	err             string
	fieldErrors     map[string]string
}

// New creates a Form with an empty draft
func New(creator UserCreator, assistant Assistant, servers ServerLookup, logger *slog.Logger) *Form {
	if logger == nil {
		logger = slog.Default()
	}
	return &Form{
		creator:   creator,
		assistant: assistant,
		servers:   servers,
		logger:    logger,
		draft:     domain.UserCreationRequest{Role: domain.RoleDeveloper},
	}
}

// SelectServer sets the target server
func (f *Form) SelectServer(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.ServerID = strings.TrimSpace(id)
}

// Update replaces the draft fields with user input
func (f *Form) Update(in Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = domain.UserCreationRequest{
		ServerID:       strings.TrimSpace(in.ServerID),
		Username:       strings.TrimSpace(in.Username),
		FullName:       strings.TrimSpace(in.FullName),
		Email:          strings.TrimSpace(in.Email),
		Role:           domain.ParseUserRole(in.Role),
		SSHKey:         strings.TrimSpace(in.SSHKey),
		Sudo:           in.Sudo,
		Expiry:         strings.TrimSpace(in.Expiry),
		WelcomeMessage: in.WelcomeMessage,
	}
}

// CanSuggestUsername reports whether a username suggestion can be requested
func (f *Form) CanSuggestUsername() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft.FullName != ""
}

// CanGenerateEmail reports whether name, username and a resolvable server are set
func (f *Form) CanGenerateEmail() bool {
	f.mu.Lock()
	draft := f.draft
	f.mu.Unlock()
	_, ok := f.emailInputs(draft)
	return ok
}

func (f *Form) emailInputs(d domain.UserCreationRequest) (domain.Server, bool) {
	if d.FullName == "" || d.Username == "" || d.ServerID == "" {
		return domain.Server{}, false
	}
	return f.servers.Server(d.ServerID)
}

// SuggestUsername fills the username from the full name. It is a no-op when
// no full name has been entered.
func (f *Form) SuggestUsername(ctx context.Context) {
	f.mu.Lock()
	name := f.draft.FullName
	if name == "" || f.suggesting {
		f.mu.Unlock()
		return
	}
	f.suggesting = true
	f.mu.Unlock()

	username := f.assistant.SuggestUsername(ctx, name)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggesting = false
	if username != "" {
		f.draft.Username = username
	}
}

// GenerateWelcomeEmail drafts the welcome message. It is a no-op unless the
// full name, username and a resolvable server are set. The result stays
// editable.
func (f *Form) GenerateWelcomeEmail(ctx context.Context) {
	f.mu.Lock()
	draft := f.draft
	if f.generatingEmail {
		f.mu.Unlock()
		return
	}
	server, ok := f.emailInputs(draft)
	if !ok {
		f.mu.Unlock()
		return
	}
	f.generatingEmail = true
	f.mu.Unlock()

	message := f.assistant.GenerateWelcomeEmail(ctx, draft.FullName, draft.Username, server.Name)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.generatingEmail = false
	f.draft.WelcomeMessage = message
}

// Submit sends the draft to the backend. It makes no call when no server is
// selected, a submission is already in flight, or an input constraint is
// violated. On success OnSuccess runs; on failure the error is kept and the
// draft is left intact for correction.
func (f *Form) Submit(ctx context.Context) domain.Response[domain.ServerUser] {
	f.mu.Lock()
	if f.draft.ServerID == "" {
		f.mu.Unlock()
		return domain.Fail[domain.ServerUser]("Select a target server.")
	}
	if f.submitting {
		f.mu.Unlock()
		return domain.Fail[domain.ServerUser]("A submission is already in progress.")
	}
	if errs := validate(f.draft); len(errs) > 0 {
		f.fieldErrors = errs
		f.err = "Please correct the highlighted fields."
		f.mu.Unlock()
		return domain.Fail[domain.ServerUser](f.err)
	}
	req := f.draft
	f.submitting = true
	f.err = ""
	f.fieldErrors = nil
	f.mu.Unlock()

	res := f.creator.CreateUser(ctx, req)

	f.mu.Lock()
	f.submitting = false
	if !res.Success {
		f.err = res.Error
		f.mu.Unlock()
		f.logger.Warn("user creation failed",
			slog.String("server_id", req.ServerID),
			slog.String("username", req.Username),
			slog.String("error", res.Error))
		return res
	}
	onSuccess := f.OnSuccess
	f.mu.Unlock()

	f.logger.Info("user created", slog.String("server_id", req.ServerID), slog.String("username", req.Username))
	if onSuccess != nil {
		onSuccess(res.Data)
	}
	return res
}

// Reset clears the draft, errors and flags
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = domain.UserCreationRequest{Role: domain.RoleDeveloper}
	f.err = ""
	f.fieldErrors = nil
	f.suggesting = false
	f.generatingEmail = false
}

// validate mirrors the form's input constraints: a required username and
// expiry date, and a well-formed email when present.
func validate(d domain.UserCreationRequest) map[string]string {
	errs := map[string]string{}
	if d.Username == "" {
		errs["username"] = "Username is required."
	}
	if d.Email != "" {
		if addr, err := mail.ParseAddress(d.Email); err != nil || addr.Address != d.Email {
			errs["email"] = "Enter a valid email address."
		}
	}
	if d.Expiry == "" {
		errs["expiry"] = "Expiry date is required."
	} else if _, err := time.Parse(ExpiryLayout, d.Expiry); err != nil {
		errs["expiry"] = "Use the YYYY-MM-DD date format."
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Snapshot is a read-only view of the form
type Snapshot struct {
	Draft              domain.UserCreationRequest
	Suggesting         bool
	GeneratingEmail    bool
	Submitting         bool
	Error              string
	FieldErrors        map[string]string
	CanSuggestUsername bool
	CanGenerateEmail   bool
}

// Snapshot copies the current form state
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, canEmail := f.emailInputs(f.draft)
	fieldErrors := make(map[string]string, len(f.fieldErrors))
	for k, v := range f.fieldErrors {
		fieldErrors[k] = v
	}
	return Snapshot{
		Draft:              f.draft,
		Suggesting:         f.suggesting,
		GeneratingEmail:    f.generatingEmail,
		Submitting:         f.submitting,
		Error:              f.err,
		FieldErrors:        fieldErrors,
		CanSuggestUsername: f.draft.FullName != "",
		CanGenerateEmail:   canEmail,
	}
}

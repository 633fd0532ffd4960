package web

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/jbweber/homelab/fleetdash/internal/domain"
	"github.com/jbweber/homelab/fleetdash/internal/session"
	"github.com/jbweber/homelab/fleetdash/internal/store"
	"github.com/jbweber/homelab/fleetdash/internal/workflow"
)

type dashboardPage struct {
	view
	Store   store.Snapshot
	Filters []domain.StatusFilter
}

type usersPage struct {
	view
	Server    domain.Server
	Known     bool
	Store     store.Snapshot
	ExportURL string
}

type createUserPage struct {
	view
	Form    workflow.Snapshot
	Servers []domain.Server
	Roles   []domain.UserRole
	Store   store.Snapshot
}

type settingsView struct {
	view
	Config         Settings
	ActiveSessions int
}

func (s *Server) newView(sess *session.Session, title, nav string) view {
	return view{
		Title:       title,
		Nav:         nav,
		Flash:       sess.PopFlash(),
		AIAvailable: s.settings.AIAvailable,
	}
}

// ensureServers loads the fleet once per session
func ensureServers(r *http.Request, sess *session.Session) {
	if !sess.Store.ServersLoaded() {
		sess.Store.LoadServers(r.Context())
	}
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)

	query := r.URL.Query()
	if query.Has("q") {
		sess.Store.SetSearchQuery(query.Get("q"))
	}
	if query.Has("status") {
		sess.Store.SetStatusFilter(domain.StatusFilter(query.Get("status")))
	}
	ensureServers(r, sess)

	s.render(w, r, http.StatusOK, "dashboard", dashboardPage{
		view:    s.newView(sess, "Server Fleet", "dashboard"),
		Store:   sess.Store.Snapshot(),
		Filters: domain.StatusFilters,
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	sess.Store.LoadServers(r.Context())

	snap := sess.Store.Snapshot()
	values := url.Values{}
	if snap.SearchQuery != "" {
		values.Set("q", snap.SearchQuery)
	}
	if snap.StatusFilter != domain.FilterAll {
		values.Set("status", string(snap.StatusFilter))
	}
	target := "/"
	if len(values) > 0 {
		target += "?" + values.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) serverUsers(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	serverID := pathParam(r, "serverID")

	ensureServers(r, sess)
	if sess.Store.UsersServerID() != serverID || r.URL.Query().Get("refresh") == "1" {
		sess.Store.LoadUsers(r.Context(), serverID)
	}

	server, known := sess.Store.Server(serverID)
	if !known {
		server = domain.Server{ID: serverID, Name: serverID}
	}
	s.render(w, r, http.StatusOK, "users", usersPage{
		view:      s.newView(sess, "Users on "+server.Name, "dashboard"),
		Server:    server,
		Known:     known,
		Store:     sess.Store.Snapshot(),
		ExportURL: s.settings.ExportURL,
	})
}

func (s *Server) toggleLock(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	serverID := pathParam(r, "serverID")
	username := pathParam(r, "username")

	current := domain.UserActive
	if r.PostFormValue("status") == string(domain.UserLocked) {
		current = domain.UserLocked
	}
	snap := sess.Store.Snapshot()
	if snap.UsersServerID == serverID {
		for _, u := range snap.Users {
			if u.Username == username {
				current = u.Status
				break
			}
		}
	}

	sess.Store.ToggleUserLock(r.Context(), serverID, username, current)
	http.Redirect(w, r, "/servers/"+url.PathEscape(serverID)+"/users", http.StatusSeeOther)
}

func (s *Server) newUser(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	ensureServers(r, sess)

	if id := r.URL.Query().Get("server"); id != "" {
		sess.Form.SelectServer(id)
	}

	snap := sess.Store.Snapshot()
	s.render(w, r, http.StatusOK, "create_user", createUserPage{
		view:    s.newView(sess, "Create New Server User", "create-user"),
		Form:    sess.Form.Snapshot(),
		Servers: snap.Servers,
		Roles:   domain.Roles,
		Store:   snap,
	})
}

func (s *Server) newUserAction(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	if err := r.ParseForm(); err != nil {
		sess.SetFlash(session.FlashError, "Could not read the submitted form.")
		http.Redirect(w, r, "/users/new", http.StatusSeeOther)
		return
	}

	action := r.PostForm.Get("action")
	if action == "cancel" {
		sess.Form.Reset()
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	sess.Form.Update(fieldsFromForm(r.PostForm))

	switch action {
	case "suggest":
		sess.Form.SuggestUsername(r.Context())
	case "email":
		sess.Form.GenerateWelcomeEmail(r.Context())
	case "submit":
		serverID := sess.Form.Snapshot().Draft.ServerID
		res := sess.Form.Submit(r.Context())
		if res.Success {
			if sess.Store.UsersServerID() == serverID {
				sess.Store.LoadUsers(r.Context(), serverID)
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	http.Redirect(w, r, "/users/new", http.StatusSeeOther)
}

func (s *Server) settingsPage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	s.render(w, r, http.StatusOK, "settings", settingsView{
		view:           s.newView(sess, "Portal Settings", "settings"),
		Config:         s.settings,
		ActiveSessions: s.sessions.Len(),
	})
}

func fieldsFromForm(form url.Values) workflow.Fields {
	return workflow.Fields{
		ServerID:       form.Get("serverId"),
		Username:       form.Get("username"),
		FullName:       form.Get("fullName"),
		Email:          form.Get("email"),
		Role:           form.Get("role"),
		SSHKey:         form.Get("sshKey"),
		Sudo:           form.Get("sudo") != "",
		Expiry:         form.Get("expiry"),
		WelcomeMessage: form.Get("welcomeMessage"),
	}
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

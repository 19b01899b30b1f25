package http

import (
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"strings"

	"rankedin.shikanime.studio/internal/rankedin"
)

const maxBodyBytes = 1 << 20

func decodeBody(w stdhttp.ResponseWriter, r *stdhttp.Request, v any) bool {
	r.Body = stdhttp.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, stdhttp.StatusBadRequest, codeBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

type contributeRequest struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

func (s *Server) handleContribute(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var req contributeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.contribute(w, r, rankedin.Kind(strings.ToLower(strings.TrimSpace(req.Type))), req.Identifier)
}

// handleCreate serves the kind-specific creation routes, which name the
// identifier after the entity (username, fullName or name).
func (s *Server) handleCreate(kind rankedin.Kind, field, required string) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		var req map[string]any
		if !decodeBody(w, r, &req) {
			return
		}
		id, _ := req[field].(string)
		if strings.TrimSpace(id) == "" {
			writeError(w, stdhttp.StatusBadRequest, codeBadRequest, required)
			return
		}
		s.contribute(w, r, kind, id)
	}
}

func (s *Server) contribute(w stdhttp.ResponseWriter, r *stdhttp.Request, kind rankedin.Kind, id string) {
	res, err := s.clients.Contributor().Contribute(r.Context(), kind, id)
	label := string(kind)
	if _, perr := rankedin.ParseKind(label); perr != nil {
		label = "invalid"
	}
	s.metrics.RecordContribution(label, res != nil && res.Degraded, err)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, res)
}

func parseListArgs(r *stdhttp.Request) (rankedin.ListArgs, error) {
	q := r.URL.Query()
	args := rankedin.ListArgs{
		Search: q.Get("search"),
		SortBy: q.Get("sortBy"),
		Order:  q.Get("order"),
	}
	err := parsePositiveInts(q, map[string]*int{"page": &args.Page, "limit": &args.Limit})
	return args, err
}

// parsePositiveInts sets each destination from its query parameter. Absent
// parameters keep their zero value.
func parsePositiveInts(q url.Values, dsts map[string]*int) error {
	for name, dst := range dsts {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("Invalid %s parameter", name)
		}
		*dst = n
	}
	return nil
}

func (s *Server) handleListUsers(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	args, err := parseListArgs(r)
	if err != nil {
		writeError(w, stdhttp.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	page, err := s.clients.Store().ListUsers(r.Context(), args)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, page)
}

func (s *Server) handleListRepositories(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	args, err := parseListArgs(r)
	if err != nil {
		writeError(w, stdhttp.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	page, err := s.clients.Store().ListRepositories(r.Context(), args)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, page)
}

func (s *Server) handleListTopics(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	args, err := parseListArgs(r)
	if err != nil {
		writeError(w, stdhttp.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	page, err := s.clients.Store().ListTopics(r.Context(), args)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, page)
}

// wantsSVG reports whether the badge should be rendered as an image.
func wantsSVG(r *stdhttp.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "svg":
		return true
	case "json":
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "image/svg+xml")
}

func (s *Server) handleBadge(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	username := q.Get("username")
	if username == "" {
		username = q.Get("name")
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")

	badges := s.clients.Badges()
	stats, err := badges.Stats(r.Context(), username)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if !wantsSVG(r) {
		badges.Served(r.Context(), stats)
		s.metrics.RecordBadge("json")
		writeJSON(w, stdhttp.StatusOK, stats)
		return
	}
	svg, err := rankedin.RenderSVG(stats, rankedin.ParseBadgeStyle(q.Get("style")))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	badges.Served(r.Context(), stats)
	s.metrics.RecordBadge("svg")
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.badgeTTL.Seconds())))
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write(svg)
}

func (s *Server) handleStats(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	stats, err := s.clients.Store().Stats(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, stats)
}

func (s *Server) handleSearch(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	args := rankedin.SearchArgs{Query: q.Get("q"), Type: q.Get("type")}
	if err := parsePositiveInts(q, map[string]*int{"page": &args.Page, "per_page": &args.PerPage}); err != nil {
		writeError(w, stdhttp.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	res, err := s.clients.Search().Find(r.Context(), args)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, res)
}

type subscribeRequest struct {
	Email string `json:"email"`
}

type subscribeResponse struct {
	Message    string                         `json:"message"`
	Subscriber *rankedin.NewsletterSubscriber `json:"subscriber"`
}

func (s *Server) handleSubscribe(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var req subscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sub, err := s.clients.Store().Subscribe(r.Context(), req.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusCreated, subscribeResponse{
		Message:    "Successfully subscribed to newsletter",
		Subscriber: sub,
	})
}

func (s *Server) handleSubscriberCount(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	n, err := s.clients.Store().CountSubscribers(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, map[string]int64{"count": n})
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealthz(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := s.clients.Ping(r.Context()); err != nil {
		writeJSON(w, stdhttp.StatusServiceUnavailable, healthResponse{Status: "unavailable", Service: ServiceName})
		return
	}
	writeJSON(w, stdhttp.StatusOK, healthResponse{Status: "ok", Service: ServiceName})
}

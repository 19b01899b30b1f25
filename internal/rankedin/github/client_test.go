package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := NewClient(WithBaseURL(srv.URL), WithLimiter(rate.NewLimiter(rate.Inf, 1)))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func writeBody(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprint(w, body)
}

func TestGetUserDetails(t *testing.T) {
	Convey("Given a GitHub API", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /users/torvalds", func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, `{"login":"torvalds","name":"Linus Torvalds","location":"Portland","followers":200000,"following":0,"public_repos":7}`)
		})
		mux.HandleFunc("GET /users/ghost-404", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			writeBody(w, `{"message":"Not Found"}`)
		})
		mux.HandleFunc("GET /users/broken", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			writeBody(w, `{"message":"upstream"}`)
		})
		c := newTestClient(t, mux)
		ctx := context.Background()

		Convey("When the user exists", func() {
			u, err := c.GetUserDetails(ctx, "torvalds")

			Convey("Then the profile is mapped", func() {
				So(err, ShouldBeNil)
				So(u.Login, ShouldEqual, "torvalds")
				So(u.Name, ShouldEqual, "Linus Torvalds")
				So(u.Followers, ShouldEqual, 200000)
				So(u.PublicRepos, ShouldEqual, 7)
				So(u.Bio, ShouldEqual, "")
			})
		})

		Convey("When the user does not exist", func() {
			_, err := c.GetUserDetails(ctx, "ghost-404")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When GitHub fails", func() {
			_, err := c.GetUserDetails(ctx, "broken")

			Convey("Then the error is not a not-found", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrNotFound), ShouldBeFalse)
			})
		})
	})
}

func TestGetUserTotalStars(t *testing.T) {
	Convey("Given a user with two pages of repositories", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /users/octo/repos", func(w http.ResponseWriter, r *http.Request) {
			if q := r.URL.Query(); q.Get("type") != "owner" || q.Get("per_page") != "100" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			if r.URL.Query().Get("page") == "2" {
				writeBody(w, `[{"stargazers_count":5}]`)
				return
			}
			w.Header().Set("Link", fmt.Sprintf(`<http://%s/users/octo/repos?page=2>; rel="next"`, r.Host))
			writeBody(w, `[{"stargazers_count":10},{"stargazers_count":32},{}]`)
		})
		mux.HandleFunc("GET /users/down/repos", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		c := newTestClient(t, mux)

		Convey("Then stars are summed across pages", func() {
			So(c.GetUserTotalStars(context.Background(), "octo"), ShouldEqual, 47)
		})

		Convey("Then a failing listing yields zero", func() {
			So(c.GetUserTotalStars(context.Background(), "down"), ShouldEqual, 0)
		})
	})
}

func TestGetRepositoryDetails(t *testing.T) {
	Convey("Given a GitHub API", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /repos/facebook/react", func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, `{"name":"react","full_name":"facebook/react","owner":{"login":"facebook"},
				"language":"JavaScript","html_url":"https://github.com/facebook/react",
				"stargazers_count":230000,"forks_count":47000,"watchers_count":230000,"open_issues_count":900,"size":1000,"private":false}`)
		})
		c := newTestClient(t, mux)

		Convey("When the repository exists", func() {
			r, err := c.GetRepositoryDetails(context.Background(), "facebook", "react")

			Convey("Then its metrics are mapped", func() {
				So(err, ShouldBeNil)
				So(r.FullName, ShouldEqual, "facebook/react")
				So(r.Owner, ShouldEqual, "facebook")
				So(r.Stars, ShouldEqual, 230000)
				So(r.Forks, ShouldEqual, 47000)
				So(r.OpenIssues, ShouldEqual, 900)
			})
		})

		Convey("When the repository does not exist", func() {
			_, err := c.GetRepositoryDetails(context.Background(), "facebook", "nope")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestGetTopicDetails(t *testing.T) {
	Convey("Given the repository search", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /search/repositories", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("sort") != "stars" || q.Get("order") != "desc" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			switch q.Get("q") {
			case "topic:rust":
				writeBody(w, `{"total_count":3500,"items":[{"stargazers_count":100},{"stargazers_count":23}]}`)
			case "topic:unused":
				writeBody(w, `{"total_count":0,"items":[]}`)
			default:
				w.WriteHeader(http.StatusUnprocessableEntity)
				writeBody(w, `{"message":"Validation Failed"}`)
			}
		})
		c := newTestClient(t, mux)
		ctx := context.Background()

		Convey("When repositories carry the topic", func() {
			td, err := c.GetTopicDetails(ctx, "rust")

			Convey("Then the score sums their stars", func() {
				So(err, ShouldBeNil)
				So(td.Score, ShouldEqual, 123)
				So(td.Repositories, ShouldEqual, 3500)
				So(td.DisplayName, ShouldEqual, "Rust")
				So(td.Description, ShouldEqual, "A collection of repositories related to rust")
			})
		})

		Convey("When no repository carries the topic", func() {
			td, err := c.GetTopicDetails(ctx, "unused")

			Convey("Then nothing is returned", func() {
				So(err, ShouldBeNil)
				So(td, ShouldBeNil)
			})
		})

		Convey("When the search fails", func() {
			_, err := c.GetTopicDetails(ctx, "???")

			Convey("Then the error surfaces", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSearch(t *testing.T) {
	Convey("Given the search endpoints", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /search/users", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("per_page") != "10" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			writeBody(w, `{"total_count":1,"items":[{"login":"gopher"}]}`)
		})
		mux.HandleFunc("GET /search/topics", func(w http.ResponseWriter, r *http.Request) {
			writeBody(w, `{"total_count":1,"items":[{"name":"go"}]}`)
		})
		c := newTestClient(t, mux)
		ctx := context.Background()

		Convey("Then users are proxied", func() {
			res, err := c.SearchUsers(ctx, "gopher", 0, 0)
			So(err, ShouldBeNil)
			So(res.GetTotal(), ShouldEqual, 1)
			So(res.Users[0].GetLogin(), ShouldEqual, "gopher")
		})

		Convey("Then topics are proxied", func() {
			res, err := c.SearchTopics(ctx, "go", 1, 10)
			So(err, ShouldBeNil)
			So(res.Topics[0].GetName(), ShouldEqual, "go")
		})
	})
}

func TestDisplayName(t *testing.T) {
	Convey("DisplayName capitalises the first letter", t, func() {
		So(DisplayName("machine-learning"), ShouldEqual, "Machine-learning")
		So(DisplayName(""), ShouldEqual, "")

		Convey("A multi-byte first letter stays valid UTF-8", func() {
			d := DisplayName("éclair")
			So(d, ShouldEqual, "Éclair")
			So(utf8.ValidString(d), ShouldBeTrue)
		})
	})
}

func TestNewGitHubLimiter(t *testing.T) {
	Convey("Given the default limiters", t, func() {
		for _, authenticated := range []bool{false, true} {
			l := NewGitHubLimiter(authenticated)

			Convey(fmt.Sprintf("When authenticated=%v, a contribution's calls are not delayed", authenticated), func() {
				for i := 0; i < 3; i++ {
					So(l.Reserve().Delay(), ShouldEqual, time.Duration(0))
				}
			})
		}

		Convey("When a short deadline applies, total stars still resolve", func() {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /users/gopher", func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, `{"login":"gopher"}`)
			})
			mux.HandleFunc("GET /users/gopher/repos", func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, `[{"stargazers_count":3},{"stargazers_count":4}]`)
			})
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)
			c, err := NewClient(WithBaseURL(srv.URL))
			So(err, ShouldBeNil)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err = c.GetUserDetails(ctx, "gopher")
			So(err, ShouldBeNil)
			So(c.GetUserTotalStars(ctx, "gopher"), ShouldEqual, 7)
		})
	})
}

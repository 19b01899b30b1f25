package rankedin_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"rankedin.shikanime.studio/internal/rankedin"
	"rankedin.shikanime.studio/internal/rankedin/rankedintest"
)

func TestListUsers(t *testing.T) {
	Convey("Given 25 users", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		ds := ri.Store()
		for i := 1; i <= 25; i++ {
			u := &rankedin.User{Username: fmt.Sprintf("user%02d", i), Name: fmt.Sprintf("Person %d", i), TotalStars: int64(i * 10), Followers: int64(100 - i)}
			So(ds.CreateUser(ctx, u), ShouldBeNil)
		}

		Convey("When listing with defaults", func() {
			page, err := ds.ListUsers(ctx, rankedin.ListArgs{})

			Convey("Then the 20 most starred come first", func() {
				So(err, ShouldBeNil)
				So(len(page.Users), ShouldEqual, 20)
				So(page.Users[0].Username, ShouldEqual, "user25")
				So(page.Pagination, ShouldResemble, rankedin.Pagination{Page: 1, Limit: 20, Total: 25, Pages: 2})
			})
		})

		Convey("When listing the second page ascending by followers", func() {
			page, err := ds.ListUsers(ctx, rankedin.ListArgs{Page: 2, Limit: 10, SortBy: "followers", Order: "ASC"})

			Convey("Then it starts at the eleventh", func() {
				So(err, ShouldBeNil)
				So(len(page.Users), ShouldEqual, 10)
				So(page.Users[0].Followers, ShouldEqual, 85)
				So(page.Pagination.Pages, ShouldEqual, 3)
			})
		})

		Convey("When searching case-insensitively", func() {
			page, err := ds.ListUsers(ctx, rankedin.ListArgs{Search: "PERSON 1"})

			Convey("Then name matches are returned", func() {
				So(err, ShouldBeNil)
				So(page.Pagination.Total, ShouldEqual, 11)
			})
		})

		Convey("When the search contains LIKE wildcards", func() {
			page, err := ds.ListUsers(ctx, rankedin.ListArgs{Search: "%"})
			So(err, ShouldBeNil)
			So(page.Pagination.Total, ShouldEqual, 0)
			So(page.Users, ShouldNotBeNil)
		})

		Convey("When the limit is too large", func() {
			page, err := ds.ListUsers(ctx, rankedin.ListArgs{Limit: 1000})
			So(err, ShouldBeNil)
			So(page.Pagination.Limit, ShouldEqual, 100)
		})

		Convey("When sorting by an unknown field", func() {
			_, err := ds.ListUsers(ctx, rankedin.ListArgs{SortBy: "password"})
			So(errors.Is(err, rankedin.ErrBadRequest), ShouldBeTrue)
		})

		Convey("When the order is invalid", func() {
			_, err := ds.ListUsers(ctx, rankedin.ListArgs{Order: "sideways"})
			So(errors.Is(err, rankedin.ErrBadRequest), ShouldBeTrue)
		})
	})
}

func TestListRepositoriesAndTopics(t *testing.T) {
	Convey("Given repositories and topics", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		ds := ri.Store()
		So(ds.CreateRepository(ctx, &rankedin.Repository{Name: "react", FullName: "facebook/react", Owner: "facebook", Description: "UI library", Stars: 3}), ShouldBeNil)
		So(ds.CreateRepository(ctx, &rankedin.Repository{Name: "go", FullName: "golang/go", Owner: "golang", Stars: 2}), ShouldBeNil)
		So(ds.CreateTopic(ctx, &rankedin.Topic{Name: "ml", DisplayName: "Machine Learning", Score: 1}), ShouldBeNil)
		So(ds.CreateTopic(ctx, &rankedin.Topic{Name: "go", DisplayName: "Go", Score: 5}), ShouldBeNil)

		Convey("Repositories search the description", func() {
			page, err := ds.ListRepositories(ctx, rankedin.ListArgs{Search: "ui lib"})
			So(err, ShouldBeNil)
			So(len(page.Repositories), ShouldEqual, 1)
			So(page.Repositories[0].FullName, ShouldEqual, "facebook/react")
		})

		Convey("Topics sort by score by default", func() {
			page, err := ds.ListTopics(ctx, rankedin.ListArgs{})
			So(err, ShouldBeNil)
			So(page.Topics[0].Name, ShouldEqual, "go")
		})

		Convey("Topics search the display name", func() {
			page, err := ds.ListTopics(ctx, rankedin.ListArgs{Search: "learning", SortBy: "name", Order: "asc"})
			So(err, ShouldBeNil)
			So(page.Pagination.Total, ShouldEqual, 1)
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Given some rankings", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		ds := ri.Store()
		So(ds.CreateUser(ctx, &rankedin.User{Username: "a"}), ShouldBeNil)
		So(ds.CreateRepository(ctx, &rankedin.Repository{Name: "a", FullName: "o/a", Owner: "o", Stars: 1_500_000}), ShouldBeNil)
		So(ds.CreateRepository(ctx, &rankedin.Repository{Name: "b", FullName: "o/b", Owner: "o", Stars: 250_000}), ShouldBeNil)
		So(ds.IncrementBadgeRequests(ctx), ShouldBeNil)
		_, err := ds.Subscribe(ctx, "reader@example.com")
		So(err, ShouldBeNil)

		Convey("When stats are read", func() {
			s, err := ds.Stats(ctx)

			Convey("Then counts and sums are humanized", func() {
				So(err, ShouldBeNil)
				So(s.UsersRanked, ShouldResemble, rankedin.Stat{Value: "1", Raw: 1, Description: "GitHub developers in our rankings"})
				So(s.Repositories.Raw, ShouldEqual, 2)
				So(s.TotalStars.Value, ShouldEqual, "1.8M")
				So(s.TotalStars.Raw, ShouldEqual, 1_750_000)
				So(s.ActiveTopics.Raw, ShouldEqual, 0)
				So(s.BadgeRequests.Raw, ShouldEqual, 1)
				So(s.NewsletterSubscribers.Raw, ShouldEqual, 1)
			})
		})
	})
}

func TestHumanize(t *testing.T) {
	Convey("Humanize abbreviates thousands and millions", t, func() {
		So(rankedin.Humanize(999), ShouldEqual, "999")
		So(rankedin.Humanize(1000), ShouldEqual, "1.0K")
		So(rankedin.Humanize(45_678), ShouldEqual, "45.7K")
		So(rankedin.Humanize(1_234_567), ShouldEqual, "1.2M")
	})
}

func TestSubscribe(t *testing.T) {
	Convey("Given a newsletter", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		ds := ri.Store()

		Convey("A valid email is stored lowercase", func() {
			sub, err := ds.Subscribe(ctx, " Reader@Example.com ")
			So(err, ShouldBeNil)
			So(sub.Email, ShouldEqual, "reader@example.com")
			So(sub.IsActive, ShouldBeTrue)
			n, err := ds.CountSubscribers(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			Convey("And subscribing again conflicts", func() {
				_, err := ds.Subscribe(ctx, "reader@example.com")
				So(errors.Is(err, rankedin.ErrConflict), ShouldBeTrue)
			})
		})

		Convey("Invalid emails are rejected", func() {
			_, err := ds.Subscribe(ctx, "")
			So(rankedin.Message(err), ShouldEqual, "Email is required")
			_, err = ds.Subscribe(ctx, "not-an-email")
			So(rankedin.Message(err), ShouldEqual, "Invalid email format")
		})
	})
}

func TestSearch(t *testing.T) {
	Convey("Given a GitHub search", t, func() {
		ctx := context.Background()
		fake := rankedintest.NewGitHub()
		s := rankedin.NewSearch(fake)

		Convey("All types are searched by default", func() {
			res, err := s.Find(ctx, rankedin.SearchArgs{Query: "go"})
			So(err, ShouldBeNil)
			So(res.Users.GetTotal(), ShouldEqual, 1)
			So(res.Repositories.GetTotal(), ShouldEqual, 1)
			So(res.Topics.GetTotal(), ShouldEqual, 1)
		})

		Convey("A single type can be selected", func() {
			res, err := s.Find(ctx, rankedin.SearchArgs{Query: "go", Type: "topics"})
			So(err, ShouldBeNil)
			So(res.Users, ShouldBeNil)
			So(res.Topics, ShouldNotBeNil)
		})

		Convey("Failures yield empty results", func() {
			fake.SearchErr = rankedintest.ErrSearch
			res, err := s.Find(ctx, rankedin.SearchArgs{Query: "go", Type: "repos"})
			So(err, ShouldBeNil)
			So(res.Repositories.GetTotal(), ShouldEqual, 0)
			So(res.Repositories.Repositories, ShouldBeEmpty)
		})

		Convey("Every type still answers when all searches fail", func() {
			fake.SearchErr = rankedintest.ErrSearch
			res, err := s.Find(ctx, rankedin.SearchArgs{Query: "go"})
			So(err, ShouldBeNil)
			So(res.Users.Users, ShouldBeEmpty)
			So(res.Repositories.Repositories, ShouldBeEmpty)
			So(res.Topics.Topics, ShouldBeEmpty)
		})

		Convey("A query is required", func() {
			_, err := s.Find(ctx, rankedin.SearchArgs{Query: " "})
			So(errors.Is(err, rankedin.ErrBadRequest), ShouldBeTrue)
		})

		Convey("Unknown types are rejected", func() {
			_, err := s.Find(ctx, rankedin.SearchArgs{Query: "go", Type: "orgs"})
			So(errors.Is(err, rankedin.ErrBadRequest), ShouldBeTrue)
		})
	})
}

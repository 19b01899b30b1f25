package rankedin_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"rankedin.shikanime.studio/internal/rankedin"
)

func TestDedupe(t *testing.T) {
	Convey("Given tables holding duplicate identities", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		db := ri.Database().Gorm(ctx)
		m := db.Migrator()
		So(m.DropIndex(&rankedin.User{}, "uq_users_username"), ShouldBeNil)
		So(m.DropIndex(&rankedin.Repository{}, "uq_repositories_full_name"), ShouldBeNil)
		So(m.DropIndex(&rankedin.Topic{}, "uq_topics_name"), ShouldBeNil)

		old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		fresh := old.Add(48 * time.Hour)
		So(db.Create(&[]rankedin.User{
			{Username: "x", TotalStars: 1, UpdatedAt: old},
			{Username: "x", TotalStars: 2, UpdatedAt: fresh},
			{Username: "x", TotalStars: 3, UpdatedAt: old},
			{Username: "solo", TotalStars: 9},
		}).Error, ShouldBeNil)
		So(db.Create(&[]rankedin.Repository{
			{Name: "r", FullName: "o/r", Owner: "o", Stars: 10},
			{Name: "r", FullName: "o/r", Owner: "o", Stars: 99},
			{Name: "r", FullName: "o/r", Owner: "o", Stars: 99},
		}).Error, ShouldBeNil)
		So(db.Create(&[]rankedin.Topic{
			{Name: "t", Score: 5},
			{Name: "t", Score: 50},
		}).Error, ShouldBeNil)

		Convey("When dedupe runs", func() {
			report, err := ri.Maintenance().Dedupe(ctx)

			Convey("Then one row per identity survives", func() {
				So(err, ShouldBeNil)
				So(report["users"], ShouldEqual, 2)
				So(report["repositories"], ShouldEqual, 2)
				So(report["topics"], ShouldEqual, 1)

				var users []rankedin.User
				So(db.Order("username").Find(&users).Error, ShouldBeNil)
				So(len(users), ShouldEqual, 2)
				So(users[1].Username, ShouldEqual, "x")
				So(users[1].TotalStars, ShouldEqual, 2)

				var repos []rankedin.Repository
				So(db.Find(&repos).Error, ShouldBeNil)
				So(len(repos), ShouldEqual, 1)
				So(repos[0].Stars, ShouldEqual, 99)
				So(repos[0].ID, ShouldEqual, 2)

				var topics []rankedin.Topic
				So(db.Find(&topics).Error, ShouldBeNil)
				So(len(topics), ShouldEqual, 1)
				So(topics[0].Score, ShouldEqual, 50)
			})

			Convey("Then running it again changes nothing", func() {
				again, err := ri.Maintenance().Dedupe(ctx)
				So(err, ShouldBeNil)
				So(again["users"]+again["repositories"]+again["topics"], ShouldEqual, 0)
			})
		})

		Convey("When validating before dedupe", func() {
			report, err := ri.Maintenance().Validate(ctx)

			Convey("Then the duplicates are reported", func() {
				So(err, ShouldBeNil)
				So(report.Healthy(), ShouldBeFalse)
				So(report.Tables["users"].Duplicates, ShouldResemble, []rankedin.DuplicateGroup{{Identity: "x", Count: 3}})
				So(report.Tables["repositories"].Total, ShouldEqual, 3)
				So(report.TotalStars, ShouldEqual, 208)
			})
		})
	})
}

func TestClamp(t *testing.T) {
	Convey("Given rows with negative counts", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		ds := ri.Store()
		So(ds.CreateUser(ctx, &rankedin.User{Username: "neg", Followers: -5, Following: -1, TotalStars: 10}), ShouldBeNil)
		So(ds.CreateUser(ctx, &rankedin.User{Username: "ok", Followers: 5}), ShouldBeNil)
		So(ds.CreateRepository(ctx, &rankedin.Repository{Name: "r", FullName: "o/r", Owner: "o", HTMLURL: "https://github.com/o/r", Stars: -3}), ShouldBeNil)
		So(ds.CreateTopic(ctx, &rankedin.Topic{Name: "t", Repositories: -2}), ShouldBeNil)

		before, err := ri.Maintenance().Validate(ctx)
		So(err, ShouldBeNil)
		So(before.Tables["users"].Negative, ShouldEqual, 1)

		Convey("When clamp runs", func() {
			report, err := ri.Maintenance().Clamp(ctx)

			Convey("Then every negative field is reset", func() {
				So(err, ShouldBeNil)
				So(report["users"], ShouldEqual, 2)
				So(report["repositories"], ShouldEqual, 1)
				So(report["topics"], ShouldEqual, 1)

				u, err := ds.GetUser(ctx, "neg")
				So(err, ShouldBeNil)
				So(u.Followers, ShouldEqual, 0)
				So(u.Following, ShouldEqual, 0)
				So(u.TotalStars, ShouldEqual, 10)

				after, err := ri.Maintenance().Validate(ctx)
				So(err, ShouldBeNil)
				So(after.Healthy(), ShouldBeTrue)
			})

			Convey("Then running it again changes nothing", func() {
				again, err := ri.Maintenance().Clamp(ctx)
				So(err, ShouldBeNil)
				So(again["users"]+again["repositories"]+again["topics"], ShouldEqual, 0)
			})
		})
	})
}

func TestValidateIncomplete(t *testing.T) {
	Convey("Given a repository without a URL", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		So(ri.Store().CreateRepository(ctx, &rankedin.Repository{Name: "r", FullName: "o/r", Owner: "o"}), ShouldBeNil)

		Convey("Then it is reported incomplete", func() {
			report, err := ri.Maintenance().Validate(ctx)
			So(err, ShouldBeNil)
			So(report.Tables["repositories"].Incomplete, ShouldEqual, 1)
			So(report.Tables["users"].Healthy(), ShouldBeTrue)
		})
	})
}

package rankedin_test

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"k8s.io/utils/ptr"
	"rankedin.shikanime.studio/internal/rankedin"
)

func TestRank(t *testing.T) {
	Convey("Given ranked users", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		ds := ri.Store()
		for _, u := range []rankedin.User{
			{Username: "a", TotalStars: 900, Followers: 1},
			{Username: "b", TotalStars: 500, Followers: 80},
			{Username: "c", TotalStars: 500, Followers: 20},
			{Username: "d", TotalStars: 500, Followers: 20},
			{Username: "e", TotalStars: 10, Followers: 0},
		} {
			So(ds.CreateUser(ctx, &u), ShouldBeNil)
		}
		rank := func(stars int64, followers *int64) int64 {
			r, err := ds.Rank(ctx, rankedin.RankArgs{Kind: rankedin.KindUser, Metric: stars, TieBreak: followers})
			So(err, ShouldBeNil)
			return r
		}

		Convey("Followers break ties on stars", func() {
			So(rank(500, ptr.To[int64](80)), ShouldEqual, 2)
			So(rank(500, ptr.To[int64](20)), ShouldEqual, 3)
		})

		Convey("Equal stars and followers share a rank", func() {
			So(rank(500, ptr.To[int64](20)), ShouldEqual, rank(500, ptr.To[int64](20)))
		})

		Convey("Without a tie-break only stars count", func() {
			So(rank(500, nil), ShouldEqual, 2)
			So(rank(10, nil), ShouldEqual, 5)
		})

		Convey("A higher metric never ranks worse", func() {
			prev := int64(1 << 40)
			for _, stars := range []int64{0, 10, 11, 499, 500, 501, 900, 901} {
				r := rank(stars, nil)
				So(r, ShouldBeLessThanOrEqualTo, prev)
				prev = r
			}
		})

		Convey("Ranks stay within 1 and count+1", func() {
			n, err := ds.CountUsers(ctx)
			So(err, ShouldBeNil)
			So(rank(1<<40, ptr.To[int64](0)), ShouldEqual, 1)
			So(rank(-1, ptr.To[int64](0)), ShouldEqual, n+1)
		})
	})

	Convey("Given ranked repositories and topics", t, func() {
		ctx := context.Background()
		ri, _ := newTestRankedIn(t)
		ds := ri.Store()
		So(ds.CreateRepository(ctx, &rankedin.Repository{Name: "x", FullName: "o/x", Owner: "o", Stars: 50}), ShouldBeNil)
		So(ds.CreateRepository(ctx, &rankedin.Repository{Name: "y", FullName: "o/y", Owner: "o", Stars: 50}), ShouldBeNil)
		So(ds.CreateTopic(ctx, &rankedin.Topic{Name: "go", Score: 7}), ShouldBeNil)

		Convey("Repositories rank on stars", func() {
			r, err := ds.Rank(ctx, rankedin.RankArgs{Kind: rankedin.KindRepo, Metric: 50})
			So(err, ShouldBeNil)
			So(r, ShouldEqual, 1)
			r, err = ds.Rank(ctx, rankedin.RankArgs{Kind: rankedin.KindRepo, Metric: 49, TieBreak: ptr.To[int64](1000)})
			So(err, ShouldBeNil)
			So(r, ShouldEqual, 3)
		})

		Convey("Topics rank on score", func() {
			r, err := ds.Rank(ctx, rankedin.RankArgs{Kind: rankedin.KindTopic, Metric: 0})
			So(err, ShouldBeNil)
			So(r, ShouldEqual, 2)
		})

		Convey("Unknown kinds fail", func() {
			_, err := ds.Rank(ctx, rankedin.RankArgs{Kind: "org"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseKind(t *testing.T) {
	Convey("ParseKind accepts the three kinds", t, func() {
		for _, s := range []string{"user", "repo", "topic"} {
			k, err := rankedin.ParseKind(s)
			So(err, ShouldBeNil)
			So(string(k), ShouldEqual, s)
		}
		_, err := rankedin.ParseKind("repository")
		So(err, ShouldNotBeNil)
		So(rankedin.KindRepo.Label(), ShouldEqual, "Repository")
	})
}

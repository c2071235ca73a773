package dashboard_test

import (
	"context"
	"regexp"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/scale-custody/internal/calibration"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database/testdb"
	"github.com/frahmantamala/scale-custody/internal/dashboard"
	dashboardPostgres "github.com/frahmantamala/scale-custody/internal/dashboard/postgres"
)

func countRow(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

var _ = Describe("Dashboard Repository", func() {
	Context("against postgres placeholders", func() {
		var (
			mock sqlmock.Sqlmock
			repo *dashboardPostgres.DashboardRepository
		)

		BeforeEach(func() {
			mockDB, m, err := sqlmock.New()
			Expect(err).NotTo(HaveOccurred())
			mock = m
			repo = dashboardPostgres.NewDashboardRepository(sqlx.NewDb(mockDB, "pgx"))
			DeferCleanup(mockDB.Close)
		})

		It("issues the four counts with a strict lower bound on expiring", func() {
			now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

			mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM scales")).WillReturnRows(countRow(10))
			mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM scales WHERE status = $1")).
				WithArgs("assigned").WillReturnRows(countRow(3))
			mock.ExpectQuery(regexp.QuoteMeta("next_calibration_date > $1 AND next_calibration_date <= $2")).
				WithArgs(now, now.Add(calibration.WarningWindow)).WillReturnRows(countRow(2))
			mock.ExpectQuery(regexp.QuoteMeta("WHERE next_calibration_date IS NOT NULL AND next_calibration_date <= $1")).
				WithArgs(now).WillReturnRows(countRow(1))

			stats, err := repo.Stats(context.Background(), now)
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(dashboard.Stats{TotalUnits: 10, InField: 3, Expiring: 2, Expired: 1}))
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("wraps query failures", func() {
			mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM scales")).WillReturnError(context.DeadlineExceeded)

			_, err := repo.Stats(context.Background(), time.Now())
			Expect(err).To(MatchError(ContainSubstring("dashboard count")))
		})

		It("selects due scales excluding retired ones", func() {
			horizon := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
			due := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
			rows := sqlmock.NewRows([]string{"id", "scale_id", "model", "status", "location", "next_calibration_date"}).
				AddRow(int64(4), "SC-4", "PX-220", "available", nil, due)

			mock.ExpectQuery(regexp.QuoteMeta("next_calibration_date <= $1 AND status <> $2")).
				WithArgs(horizon, "retired").WillReturnRows(rows)

			got, err := repo.CalibrationDue(context.Background(), horizon)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ScaleID).To(Equal("SC-4"))
			Expect(got[0].Status).To(Equal(custody.ScaleAvailable))
			Expect(got[0].Location).To(BeNil())
			Expect(got[0].NextCalibrationDate).To(Equal(due))
		})
		It("takes the earlier of the expiry and warning-window boundaries", func() {
			now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
			soon := now.AddDate(0, 0, 20)
			later := now.AddDate(0, 0, 45)

			mock.ExpectQuery(regexp.QuoteMeta("next_calibration_date > $1")).
				WithArgs(now).WillReturnRows(sqlmock.NewRows([]string{"next_calibration_date"}).AddRow(soon))
			mock.ExpectQuery(regexp.QuoteMeta("next_calibration_date > $1")).
				WithArgs(now.Add(calibration.WarningWindow)).
				WillReturnRows(sqlmock.NewRows([]string{"next_calibration_date"}).AddRow(later))

			next, err := repo.NextStatsChange(context.Background(), now)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).NotTo(BeNil())
			Expect(*next).To(Equal(later.Add(-calibration.WarningWindow)))
			Expect(mock.ExpectationsWereMet()).To(Succeed())
		})

		It("reports no boundary when nothing is scheduled", func() {
			now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
			empty := func() *sqlmock.Rows { return sqlmock.NewRows([]string{"next_calibration_date"}) }
			mock.ExpectQuery(regexp.QuoteMeta("next_calibration_date > $1")).WithArgs(now).WillReturnRows(empty())
			mock.ExpectQuery(regexp.QuoteMeta("next_calibration_date > $1")).
				WithArgs(now.Add(calibration.WarningWindow)).WillReturnRows(empty())

			next, err := repo.NextStatsChange(context.Background(), now)
			Expect(err).NotTo(HaveOccurred())
			Expect(next).To(BeNil())
		})
	})

	Context("against a live store", func() {
		It("reproduces the fleet scenario", func() {
			db, err := testdb.Open()
			Expect(err).NotTo(HaveOccurred())
			sqlDB, err := db.DB()
			Expect(err).NotTo(HaveOccurred())
			repo := dashboardPostgres.NewDashboardRepository(sqlx.NewDb(sqlDB, "sqlite3"))

			for i := 0; i < 3; i++ {
				testdb.MustScale(db, custody.ScaleAssigned, testdb.DaysFromNow(200))
			}
			testdb.MustScale(db, custody.ScaleAvailable, testdb.DaysFromNow(10))
			testdb.MustScale(db, custody.ScaleAvailable, testdb.DaysFromNow(10))
			testdb.MustScale(db, custody.ScaleAvailable, testdb.DaysFromNow(-1))
			for i := 0; i < 4; i++ {
				testdb.MustScale(db, custody.ScaleAvailable, nil)
			}

			stats, err := repo.Stats(context.Background(), time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			Expect(stats).To(Equal(dashboard.Stats{TotalUnits: 10, InField: 3, Expiring: 2, Expired: 1}))

			due, err := repo.CalibrationDue(context.Background(), time.Now().UTC().Add(calibration.WarningWindow))
			Expect(err).NotTo(HaveOccurred())
			Expect(due).To(HaveLen(3))
			Expect(due[0].NextCalibrationDate.Before(due[1].NextCalibrationDate)).To(BeTrue())
		})

		It("finds the next boundary in stored due dates", func() {
			db, err := testdb.Open()
			Expect(err).NotTo(HaveOccurred())
			sqlDB, err := db.DB()
			Expect(err).NotTo(HaveOccurred())
			repo := dashboardPostgres.NewDashboardRepository(sqlx.NewDb(sqlDB, "sqlite3"))

			testdb.MustScale(db, custody.ScaleAvailable, testdb.DaysFromNow(-3))
			in45 := testdb.DaysFromNow(45)
			testdb.MustScale(db, custody.ScaleAvailable, in45)
			testdb.MustScale(db, custody.ScaleAvailable, testdb.DaysFromNow(100))

			next, err := repo.NextStatsChange(context.Background(), time.Now().UTC())
			Expect(err).NotTo(HaveOccurred())
			Expect(next).NotTo(BeNil())
			Expect(*next).To(BeTemporally("~", in45.Add(-calibration.WarningWindow), time.Second))
		})
	})
})

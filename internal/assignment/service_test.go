package assignment_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/assignment"
	"github.com/frahmantamala/scale-custody/internal/core/common/jsontime"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database/testdb"
	assignmentDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/assignment"
	auditDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/auditlog"
	scaleDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/scale"
	unitDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/unit"
	"github.com/frahmantamala/scale-custody/internal/core/events"
	"github.com/frahmantamala/scale-custody/internal/obs"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

var _ = Describe("Assignment Service", func() {
	var (
		db      *gorm.DB
		service *assignment.Service
		ctx     context.Context
		actorID int64
		s1      *scaleDatamodel.Scale
		u1      *unitDatamodel.Unit
	)

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())
		service = newService(db)
		ctx, actorID = actorCtx(db, custody.RoleTechnician)
		s1 = testdb.MustScale(db, custody.ScaleAvailable, testdb.DaysFromNow(60))
		u1 = testdb.MustUnit(db, "U1")
	})

	auditRows := func(action custody.ActionType) []auditDatamodel.AuditLog {
		var rows []auditDatamodel.AuditLog
		Expect(db.Where("action_type = ?", action).Find(&rows).Error).To(Succeed())
		return rows
	}

	assignS1 := func() *assignment.Assignment {
		a, err := service.Assign(ctx, assignment.AssignDTO{
			ScaleID:              s1.ID,
			UnitID:               u1.ID,
			AssignedToPersonName: "Smith",
			Location:             strPtr("Range 3"),
		})
		Expect(err).NotTo(HaveOccurred())
		return a
	}

	Describe("Assign", func() {
		It("creates an active assignment, flips the scale and records one audit row", func() {
			before := testutil.ToFloat64(obs.AssignmentsTotal)

			a := assignS1()
			Expect(a.Status).To(Equal(custody.AssignmentActive))
			Expect(a.AssignedByID).To(Equal(actorID))
			Expect(a.AssignedToPersonName).To(Equal("Smith"))
			Expect(reloadScale(db, s1.ID).Status).To(Equal(custody.ScaleAssigned))

			rows := auditRows(custody.ActionAssigned)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].UserID).To(Equal(actorID))
			Expect(*rows[0].ScaleID).To(Equal(s1.ID))
			Expect(*rows[0].AssignmentID).To(Equal(a.ID))
			Expect(rows[0].Description).To(Equal("Scale assigned to Smith"))
			Expect(rows[0].Metadata).To(HaveKeyWithValue("unitCode", "U1"))
			Expect(rows[0].Metadata).To(HaveKeyWithValue("location", "Range 3"))

			active, err := service.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(HaveLen(1))
			Expect(active[0].ID).To(Equal(a.ID))
			Expect(active[0].Unit.Code).To(Equal("U1"))
			Expect(active[0].Scale.ScaleID).To(Equal(s1.ScaleID))

			Expect(testutil.ToFloat64(obs.AssignmentsTotal)).To(Equal(before + 1))
			Expect(expectStatusInvariant(db)).To(BeTrue())
		})

		It("rejects a second assignment of the same scale", func() {
			assignS1()

			_, err := service.Assign(ctx, assignment.AssignDTO{ScaleID: s1.ID, UnitID: u1.ID, AssignedToPersonName: "Jones"})
			Expect(internal.HasCode(err, internal.ErrCodeInvalidState)).To(BeTrue())

			Expect(countActive(db, s1.ID)).To(Equal(int64(1)))
			var total int64
			Expect(db.Model(&assignmentDatamodel.Assignment{}).Count(&total).Error).To(Succeed())
			Expect(total).To(Equal(int64(1)))
			Expect(auditRows(custody.ActionAssigned)).To(HaveLen(1))
		})

		It("refuses scales in maintenance or retired", func() {
			for _, status := range []custody.ScaleStatus{custody.ScaleMaintenance, custody.ScaleRetired} {
				s := testdb.MustScale(db, status, nil)
				_, err := service.Assign(ctx, assignment.AssignDTO{ScaleID: s.ID, UnitID: u1.ID, AssignedToPersonName: "Lee"})
				Expect(internal.HasCode(err, internal.ErrCodeInvalidState)).To(BeTrue())
				Expect(reloadScale(db, s.ID).Status).To(Equal(status))
			}
		})

		It("still assigns a scale whose calibration is expiring", func() {
			s := testdb.MustScale(db, custody.ScaleAvailable, testdb.DaysFromNow(5))
			_, err := service.Assign(ctx, assignment.AssignDTO{ScaleID: s.ID, UnitID: u1.ID, AssignedToPersonName: "Kim"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports unknown scales and units as NotFound", func() {
			_, err := service.Assign(ctx, assignment.AssignDTO{ScaleID: 999, UnitID: u1.ID, AssignedToPersonName: "X"})
			Expect(internal.HasCode(err, internal.ErrCodeScaleNotFound)).To(BeTrue())

			_, err = service.Assign(ctx, assignment.AssignDTO{ScaleID: s1.ID, UnitID: 999, AssignedToPersonName: "X"})
			Expect(internal.HasCode(err, internal.ErrCodeUnitNotFound)).To(BeTrue())
			Expect(reloadScale(db, s1.ID).Status).To(Equal(custody.ScaleAvailable))
		})

		It("refuses inactive units", func() {
			Expect(db.Model(u1).Update("is_active", false).Error).To(Succeed())
			_, err := service.Assign(ctx, assignment.AssignDTO{ScaleID: s1.ID, UnitID: u1.ID, AssignedToPersonName: "X"})
			Expect(internal.HasCode(err, internal.ErrCodeInvalidState)).To(BeTrue())
		})

		It("validates the request before touching the store", func() {
			_, err := service.Assign(ctx, assignment.AssignDTO{ScaleID: s1.ID})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))

			past := time.Now().UTC().AddDate(0, 0, -3)
			_, err = service.Assign(ctx, assignment.AssignDTO{
				ScaleID: s1.ID, UnitID: u1.ID, AssignedToPersonName: "X",
				ExpectedReturnDate: jsontime.New(past),
			})
			appErr, ok = internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			Expect(reloadScale(db, s1.ID).Status).To(Equal(custody.ScaleAvailable))
		})

		It("is forbidden to viewers and auditors", func() {
			for _, role := range []custody.Role{custody.RoleViewer, custody.RoleAuditor} {
				roleCtx, _ := actorCtx(db, role)
				_, err := service.Assign(roleCtx, assignment.AssignDTO{ScaleID: s1.ID, UnitID: u1.ID, AssignedToPersonName: "X"})
				Expect(internal.HasCode(err, internal.ErrCodeForbidden)).To(BeTrue())
			}
			Expect(reloadScale(db, s1.ID).Status).To(Equal(custody.ScaleAvailable))
		})

		It("keeps the assignment when the audit write fails", func() {
			Expect(db.Migrator().DropTable(&auditDatamodel.AuditLog{})).To(Succeed())
			failures := testutil.ToFloat64(obs.AuditWriteFailuresTotal)

			a := assignS1()
			Expect(a.ID).To(BeNumerically(">", 0))
			Expect(reloadScale(db, s1.ID).Status).To(Equal(custody.ScaleAssigned))
			Expect(countActive(db, s1.ID)).To(Equal(int64(1)))
			Expect(testutil.ToFloat64(obs.AuditWriteFailuresTotal)).To(Equal(failures + 1))
		})

		It("publishes an event after commit", func() {
			bus := events.NewEventBus(logger.Discard())
			received := make(chan events.Event, 1)
			bus.Subscribe(events.EventTypeScaleAssigned, func(_ context.Context, e events.Event) error {
				received <- e
				return nil
			})
			service = newService(db, assignment.WithPublisher(bus))

			a := assignS1()
			bus.Wait()
			Eventually(received).Should(Receive(WithTransform(func(e events.Event) int64 {
				return e.(*events.ScaleAssignedEvent).AssignmentID
			}, Equal(a.ID))))
		})

		It("rejects a second active row at the store level", func() {
			a := assignS1()
			dup := &assignmentDatamodel.Assignment{
				ScaleID:              a.ScaleID,
				UnitID:               a.UnitID,
				AssignedToPersonName: "Racer",
				AssignedByID:         actorID,
				AssignedAt:           time.Now().UTC(),
				Status:               custody.AssignmentActive,
			}
			Expect(db.Create(dup).Error).To(HaveOccurred())
		})
	})

	Describe("Return", func() {
		It("closes the assignment and restores the scale with its condition", func() {
			a := assignS1()
			before := testutil.ToFloat64(obs.ReturnsTotal.WithLabelValues("good"))

			returned, err := service.Return(ctx, a.ID, assignment.ReturnDTO{ReturnCondition: "good", ReturnNotes: strPtr("minor scuff")})
			Expect(err).NotTo(HaveOccurred())
			Expect(returned.Status).To(Equal(custody.AssignmentReturned))
			Expect(returned.ReturnedAt).NotTo(BeNil())
			Expect(*returned.ReturnedByID).To(Equal(actorID))
			Expect(*returned.ReturnCondition).To(Equal(custody.ConditionGood))
			Expect(*returned.ReturnNotes).To(Equal("minor scuff"))

			stored := reloadScale(db, s1.ID)
			Expect(stored.Status).To(Equal(custody.ScaleAvailable))
			Expect(stored.Condition).To(Equal(custody.ConditionGood))

			rows := auditRows(custody.ActionReturned)
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Description).To(Equal("Scale returned in good condition"))
			Expect(*rows[0].AssignmentID).To(Equal(a.ID))
			Expect(rows[0].Metadata).To(HaveKeyWithValue("returnCondition", "good"))

			Expect(testutil.ToFloat64(obs.ReturnsTotal.WithLabelValues("good"))).To(Equal(before + 1))
			Expect(expectStatusInvariant(db)).To(BeTrue())

			active, err := service.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeEmpty())
		})

		It("rejects returning twice and leaves the first return intact", func() {
			a := assignS1()
			first, err := service.Return(ctx, a.ID, assignment.ReturnDTO{ReturnCondition: "fair"})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Return(ctx, a.ID, assignment.ReturnDTO{ReturnCondition: "damaged"})
			Expect(internal.HasCode(err, internal.ErrCodeInvalidState)).To(BeTrue())

			got, err := service.Get(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*got.ReturnCondition).To(Equal(custody.ConditionFair))
			Expect(got.ReturnedAt.Equal(*first.ReturnedAt)).To(BeTrue())
			Expect(reloadScale(db, s1.ID).Condition).To(Equal(custody.ConditionFair))
			Expect(auditRows(custody.ActionReturned)).To(HaveLen(1))
		})

		It("reports an unknown assignment as NotFound", func() {
			_, err := service.Return(ctx, 12345, assignment.ReturnDTO{ReturnCondition: "good"})
			Expect(internal.HasCode(err, internal.ErrCodeAssignmentNotFound)).To(BeTrue())
		})

		It("rejects unknown conditions", func() {
			a := assignS1()
			_, err := service.Return(ctx, a.ID, assignment.ReturnDTO{ReturnCondition: "sparkling"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			Expect(countActive(db, s1.ID)).To(Equal(int64(1)))
		})

		It("lets a returned scale be assigned again", func() {
			a := assignS1()
			_, err := service.Return(ctx, a.ID, assignment.ReturnDTO{ReturnCondition: "excellent"})
			Expect(err).NotTo(HaveOccurred())

			again := assignS1()
			Expect(again.ID).NotTo(Equal(a.ID))
			Expect(expectStatusInvariant(db)).To(BeTrue())
		})
	})

	Describe("Reads", func() {
		It("flags active assignments past their expected return as overdue", func() {
			a := assignS1()
			Expect(db.Model(&assignmentDatamodel.Assignment{}).Where("id = ?", a.ID).
				Update("expected_return_date", time.Now().UTC().AddDate(0, 0, -2)).Error).To(Succeed())

			got, err := service.Get(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Overdue).To(BeTrue())
			Expect(got.DisplayStatus).To(Equal(custody.AssignmentOverdue))
			Expect(got.Status).To(Equal(custody.AssignmentActive))
			Expect(got.AssignedBy.ID).To(Equal(actorID))

			_, err = service.Return(ctx, a.ID, assignment.ReturnDTO{ReturnCondition: "good"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps a return due today on time until the day ends", func() {
			today := time.Now().UTC().Truncate(24 * time.Hour)
			clock := today.Add(15 * time.Hour)
			service = newService(db, assignment.WithClock(func() time.Time { return clock }))

			a, err := service.Assign(ctx, assignment.AssignDTO{
				ScaleID:              s1.ID,
				UnitID:               u1.ID,
				AssignedToPersonName: "Smith",
				ExpectedReturnDate:   jsontime.New(today),
			})
			Expect(err).NotTo(HaveOccurred())

			got, err := service.Get(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Overdue).To(BeFalse())
			Expect(got.DisplayStatus).To(Equal(custody.AssignmentActive))

			clock = today.Add(24 * time.Hour)
			got, err = service.Get(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Overdue).To(BeTrue())
			Expect(got.DisplayStatus).To(Equal(custody.AssignmentOverdue))
		})

		It("lists every assignment newest first with the returning user", func() {
			first := assignS1()
			_, err := service.Return(ctx, first.ID, assignment.ReturnDTO{ReturnCondition: "good"})
			Expect(err).NotTo(HaveOccurred())
			second := assignS1()

			all, err := service.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].ID).To(Equal(second.ID))
			Expect(all[1].ReturnedBy).NotTo(BeNil())
			Expect(all[1].ReturnedBy.ID).To(Equal(actorID))
		})

		It("is forbidden to viewers", func() {
			viewer, _ := actorCtx(db, custody.RoleViewer)
			_, err := service.List(viewer)
			Expect(internal.HasCode(err, internal.ErrCodeForbidden)).To(BeTrue())
		})

		It("returns NotFound for unknown ids", func() {
			_, err := service.Get(ctx, 777)
			Expect(internal.HasCode(err, internal.ErrCodeAssignmentNotFound)).To(BeTrue())
		})
	})
})

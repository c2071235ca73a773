package user_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/audit"
	auditPostgres "github.com/frahmantamala/scale-custody/internal/audit/postgres"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	"github.com/frahmantamala/scale-custody/internal/core/database"
	"github.com/frahmantamala/scale-custody/internal/core/database/testdb"
	auditDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/auditlog"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
	"github.com/frahmantamala/scale-custody/internal/user"
	userPostgres "github.com/frahmantamala/scale-custody/internal/user/postgres"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func validCreate(dodID, email string) user.CreateUserDTO {
	return user.CreateUserDTO{
		DodID:     dodID,
		Password:  "correct-horse",
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     email,
		Role:      "technician",
	}
}

func auditCount(db *gorm.DB, action custody.ActionType) int64 {
	var n int64
	db.Model(&auditDatamodel.AuditLog{}).Where("action_type = ?", action).Count(&n)
	return n
}

// recordingRepo notes whether each call ran inside a transaction and can
// interleave a write before the locked read returns.
type recordingRepo struct {
	*userPostgres.UserRepository
	calls     []string
	beforeFor func(ctx context.Context, id int64)
}

func (r *recordingRepo) note(ctx context.Context, name string) {
	if database.InTransaction(ctx) {
		name += " in tx"
	}
	r.calls = append(r.calls, name)
}

func (r *recordingRepo) LockTable(ctx context.Context) error {
	r.note(ctx, "lock")
	return r.UserRepository.LockTable(ctx)
}

func (r *recordingRepo) Count(ctx context.Context) (int64, error) {
	r.note(ctx, "count")
	return r.UserRepository.Count(ctx)
}

func (r *recordingRepo) Create(ctx context.Context, u *userDatamodel.User) error {
	r.note(ctx, "create")
	return r.UserRepository.Create(ctx, u)
}

func (r *recordingRepo) GetByIDForUpdate(ctx context.Context, id int64) (*userDatamodel.User, error) {
	r.note(ctx, "load")
	if r.beforeFor != nil {
		r.beforeFor(ctx, id)
	}
	return r.UserRepository.GetByIDForUpdate(ctx, id)
}

var _ = Describe("User Service", func() {
	var (
		db      *gorm.DB
		service *user.Service
		admin   *userDatamodel.User
		ctx     context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = testdb.Open()
		Expect(err).NotTo(HaveOccurred())

		trail := audit.NewService(auditPostgres.NewAuditRepository(db), logger.Discard())
		service = user.NewService(userPostgres.NewUserRepository(db), database.NewTransactor(db), trail, bcrypt.MinCost, logger.Discard())

		admin = testdb.MustUser(db, custody.RoleAdmin)
		ctx = internal.ContextWithActor(context.Background(), internal.Actor{UserID: admin.ID, Role: custody.RoleAdmin})
	})

	Describe("Create", func() {
		It("hashes the password, stores the user and records one audit entry", func() {
			u, err := service.Create(ctx, validCreate("1234567890", "Grace.Hopper@Navy.mil"))
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Role).To(Equal(custody.RoleTechnician))
			Expect(u.IsActive).To(BeTrue())
			Expect(u.Email).To(Equal("grace.hopper@navy.mil"))
			Expect(bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct-horse"))).To(Succeed())

			body, err := json.Marshal(u)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).NotTo(ContainSubstring("password"))
			Expect(string(body)).NotTo(ContainSubstring(u.PasswordHash))

			var logs []auditDatamodel.AuditLog
			Expect(db.Where("action_type = ?", custody.ActionCreated).Find(&logs).Error).To(Succeed())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].UserID).To(Equal(admin.ID))
			Expect(logs[0].Description).To(Equal("User account created: Grace Hopper"))
		})

		It("defaults the role to viewer", func() {
			dto := validCreate("2000", "viewer@example.mil")
			dto.Role = ""
			u, err := service.Create(ctx, dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Role).To(Equal(custody.RoleViewer))
		})

		It("rejects a duplicate dodId with ConstraintViolation and writes nothing", func() {
			_, err := service.Create(ctx, validCreate("3000", "first@example.mil"))
			Expect(err).NotTo(HaveOccurred())

			_, err = service.Create(ctx, validCreate("3000", "second@example.mil"))
			Expect(internal.HasCode(err, internal.ErrCodeConstraintViolation)).To(BeTrue())

			var n int64
			db.Model(&userDatamodel.User{}).Where("dod_id = ?", "3000").Count(&n)
			Expect(n).To(Equal(int64(1)))
			Expect(auditCount(db, custody.ActionCreated)).To(Equal(int64(1)))
		})

		It("rejects a duplicate email with ConstraintViolation", func() {
			_, err := service.Create(ctx, validCreate("4000", "dup@example.mil"))
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Create(ctx, validCreate("4001", "dup@example.mil"))
			Expect(internal.HasCode(err, internal.ErrCodeConstraintViolation)).To(BeTrue())
		})

		It("reports field-level validation failures before touching the store", func() {
			_, err := service.Create(ctx, user.CreateUserDTO{DodID: "5000", Password: "short", Email: "nope", Role: "janitor"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			details := appErr.Details.(internal.ValidationErrors)
			Expect(len(details.Errors)).To(BeNumerically(">=", 4))
			Expect(auditCount(db, custody.ActionCreated)).To(BeZero())
		})

		It("requires the users and create capabilities", func() {
			tech := internal.ContextWithActor(context.Background(), internal.Actor{UserID: 99, Role: custody.RoleTechnician})
			_, err := service.Create(tech, validCreate("6000", "t@example.mil"))
			Expect(internal.HasCode(err, internal.ErrCodeForbidden)).To(BeTrue())
		})
	})

	Describe("Bootstrap", func() {
		It("refuses once any user exists", func() {
			_, err := service.Bootstrap(context.Background(), validCreate("7000", "boot@example.mil"))
			Expect(internal.HasCode(err, internal.ErrCodeInvalidState)).To(BeTrue())
		})

		It("creates the first admin and attributes the audit to it", func() {
			fresh, err := testdb.Open()
			Expect(err).NotTo(HaveOccurred())
			trail := audit.NewService(auditPostgres.NewAuditRepository(fresh), logger.Discard())
			svc := user.NewService(userPostgres.NewUserRepository(fresh), database.NewTransactor(fresh), trail, bcrypt.MinCost, logger.Discard())

			dto := validCreate("7001", "root@example.mil")
			dto.Role = ""
			u, err := svc.Bootstrap(context.Background(), dto)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Role).To(Equal(custody.RoleAdmin))

			var log auditDatamodel.AuditLog
			Expect(fresh.First(&log).Error).To(Succeed())
			Expect(log.UserID).To(Equal(u.ID))
		})

		It("checks emptiness and inserts under one table lock", func() {
			fresh, err := testdb.Open()
			Expect(err).NotTo(HaveOccurred())
			repo := &recordingRepo{UserRepository: userPostgres.NewUserRepository(fresh)}
			trail := audit.NewService(auditPostgres.NewAuditRepository(fresh), logger.Discard())
			svc := user.NewService(repo, database.NewTransactor(fresh), trail, bcrypt.MinCost, logger.Discard())

			_, err = svc.Bootstrap(context.Background(), validCreate("7002", "first@example.mil"))
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.calls).To(Equal([]string{"lock in tx", "count in tx", "create in tx"}))

			_, err = svc.Bootstrap(context.Background(), validCreate("7003", "second@example.mil"))
			Expect(internal.HasCode(err, internal.ErrCodeInvalidState)).To(BeTrue())

			var n int64
			Expect(fresh.Model(&userDatamodel.User{}).Count(&n).Error).To(Succeed())
			Expect(n).To(Equal(int64(1)))
		})

		It("leaves the store empty when the first account is invalid", func() {
			fresh, err := testdb.Open()
			Expect(err).NotTo(HaveOccurred())
			trail := audit.NewService(auditPostgres.NewAuditRepository(fresh), logger.Discard())
			svc := user.NewService(userPostgres.NewUserRepository(fresh), database.NewTransactor(fresh), trail, bcrypt.MinCost, logger.Discard())

			dto := validCreate("7004", "not-an-email")
			_, err = svc.Bootstrap(context.Background(), dto)
			Expect(err).To(HaveOccurred())

			dto.Email = "root@example.mil"
			_, err = svc.Bootstrap(context.Background(), dto)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("List", func() {
		It("orders by last name then first name", func() {
			for _, n := range [][2]string{{"Zed", "Adams"}, {"Amy", "Baker"}, {"Bob", "Adams"}} {
				dto := validCreate("L"+n[0]+n[1], n[0]+"."+n[1]+"@example.mil")
				dto.FirstName, dto.LastName = n[0], n[1]
				_, err := service.Create(ctx, dto)
				Expect(err).NotTo(HaveOccurred())
			}

			users, err := service.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			names := []string{}
			for _, u := range users {
				if u.ID != admin.ID {
					names = append(names, u.FirstName+" "+u.LastName)
				}
			}
			Expect(names).To(Equal([]string{"Bob Adams", "Zed Adams", "Amy Baker"}))
		})

		It("is forbidden to auditors", func() {
			auditor := internal.ContextWithActor(context.Background(), internal.Actor{UserID: 5, Role: custody.RoleAuditor})
			_, err := service.List(auditor)
			Expect(internal.HasCode(err, internal.ErrCodeForbidden)).To(BeTrue())
		})
	})

	Describe("Get", func() {
		It("lets any user read their own record", func() {
			viewer := testdb.MustUser(db, custody.RoleViewer)
			vctx := internal.ContextWithActor(context.Background(), internal.Actor{UserID: viewer.ID, Role: custody.RoleViewer})

			u, err := service.Get(vctx, viewer.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.DodID).To(Equal(viewer.DodID))

			_, err = service.Get(vctx, admin.ID)
			Expect(internal.HasCode(err, internal.ErrCodeForbidden)).To(BeTrue())
		})

		It("returns NotFound for unknown ids", func() {
			_, err := service.Get(ctx, 424242)
			Expect(internal.HasCode(err, internal.ErrCodeUserNotFound)).To(BeTrue())
		})
	})

	Describe("Update", func() {
		var target *user.User

		BeforeEach(func() {
			var err error
			target, err = service.Create(ctx, validCreate("8000", "target@example.mil"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("changes role and active flag and records the changes", func() {
			u, err := service.Update(ctx, target.ID, user.UpdateUserDTO{Role: strPtr("auditor"), IsActive: boolPtr(false)})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Role).To(Equal(custody.RoleAuditor))
			Expect(u.IsActive).To(BeFalse())

			var log auditDatamodel.AuditLog
			Expect(db.Where("action_type = ?", custody.ActionUpdated).First(&log).Error).To(Succeed())
			changes, ok := log.Metadata["changes"].(map[string]interface{})
			Expect(ok).To(BeTrue())
			Expect(changes).To(HaveKey("role"))
			Expect(changes).To(HaveKey("isActive"))
		})

		It("skips the audit entry when nothing differs", func() {
			_, err := service.Update(ctx, target.ID, user.UpdateUserDTO{FirstName: strPtr("Grace")})
			Expect(err).NotTo(HaveOccurred())
			Expect(auditCount(db, custody.ActionUpdated)).To(BeZero())
		})

		It("rejects an empty update", func() {
			_, err := service.Update(ctx, target.ID, user.UpdateUserDTO{})
			appErr, _ := internal.IsAppError(err)
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("stops admins from deactivating themselves", func() {
			_, err := service.Update(ctx, admin.ID, user.UpdateUserDTO{IsActive: boolPtr(false)})
			Expect(internal.HasCode(err, internal.ErrCodeInvalidState)).To(BeTrue())
		})

		It("rehashes a new password", func() {
			u, err := service.Update(ctx, target.ID, user.UpdateUserDTO{Password: strPtr("another-secret")})
			Expect(err).NotTo(HaveOccurred())
			Expect(bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("another-secret"))).To(Succeed())
		})

		It("diffs against the row as locked inside the transaction", func() {
			repo := &recordingRepo{UserRepository: userPostgres.NewUserRepository(db)}
			repo.beforeFor = func(ctx context.Context, id int64) {
				Expect(database.Conn(ctx, db).Model(&userDatamodel.User{}).
					Where("id = ?", id).Update("first_name", "Concurrent").Error).To(Succeed())
			}
			trail := audit.NewService(auditPostgres.NewAuditRepository(db), logger.Discard())
			svc := user.NewService(repo, database.NewTransactor(db), trail, bcrypt.MinCost, logger.Discard())

			u, err := svc.Update(ctx, target.ID, user.UpdateUserDTO{FirstName: strPtr("Ada")})
			Expect(err).NotTo(HaveOccurred())
			Expect(u.FirstName).To(Equal("Ada"))
			Expect(repo.calls).To(Equal([]string{"load in tx"}))

			var log auditDatamodel.AuditLog
			Expect(db.Where("action_type = ?", custody.ActionUpdated).First(&log).Error).To(Succeed())
			changes := log.Metadata["changes"].(map[string]interface{})
			Expect(changes["firstName"]).To(HaveKeyWithValue("from", "Concurrent"))
		})

		It("returns NotFound for unknown ids", func() {
			_, err := service.Update(ctx, 999999, user.UpdateUserDTO{FirstName: strPtr("X")})
			Expect(internal.HasCode(err, internal.ErrCodeUserNotFound)).To(BeTrue())
		})
	})
})

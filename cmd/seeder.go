package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/common/jsontime"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
	userDatamodel "github.com/frahmantamala/scale-custody/internal/core/datamodel/user"
	"github.com/frahmantamala/scale-custody/internal/scale"
	"github.com/frahmantamala/scale-custody/internal/unit"
	"github.com/frahmantamala/scale-custody/internal/user"
	userPostgres "github.com/frahmantamala/scale-custody/internal/user/postgres"
)

var (
	seedAdminDodID    string
	seedAdminPassword string
	seedAdminEmail    string
	seedSamples       bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with the admin account and sample inventory",
	Long:  `Create the bootstrap admin account and, optionally, sample units and scales. Running it again leaves existing records untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer closeDependencies(deps)

		app := NewApplication(deps)
		s := &Seeder{
			Users:     app.Users,
			Units:     app.Units,
			Scales:    app.Scales,
			UserStore: userPostgres.NewUserRepository(deps.Gorm),
			Logger:    deps.Logger,
		}
		report, err := s.Run(cmd.Context(), user.CreateUserDTO{
			DodID:     seedAdminDodID,
			Password:  seedAdminPassword,
			FirstName: "System",
			LastName:  "Administrator",
			Email:     seedAdminEmail,
			Role:      string(custody.RoleAdmin),
		}, seedSamples)
		if err != nil {
			return err
		}
		app.Bus.Wait()
		fmt.Printf("admin %s (id %d); units created %d, skipped %d; scales created %d, skipped %d\n",
			seedAdminDodID, report.AdminID, report.UnitsCreated, report.UnitsSkipped, report.ScalesCreated, report.ScalesSkipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminDodID, "admin-dod-id", "1000000001", "DoD id of the bootstrap admin")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "ChangeMe!2025", "password of the bootstrap admin")
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@custody.example.mil", "email of the bootstrap admin")
	seedCmd.Flags().BoolVar(&seedSamples, "samples", true, "also create sample units and scales")
}

type adminLookup interface {
	GetByDodID(ctx context.Context, dodID string) (*userDatamodel.User, error)
}

// Seeder populates an installation through the services, so every record it
// creates is validated and audited like any other.
type Seeder struct {
	Users     *user.Service
	Units     *unit.Service
	Scales    *scale.Service
	UserStore adminLookup
	Logger    *slog.Logger
	Now       func() time.Time
}

type SeedReport struct {
	AdminID       int64
	UnitsCreated  int
	UnitsSkipped  int
	ScalesCreated int
	ScalesSkipped int
}

func (s *Seeder) Run(ctx context.Context, admin user.CreateUserDTO, samples bool) (*SeedReport, error) {
	report := &SeedReport{}

	adminID, err := s.ensureAdmin(ctx, admin)
	if err != nil {
		return nil, err
	}
	report.AdminID = adminID
	if !samples {
		return report, nil
	}

	actorCtx := internal.ContextWithActor(ctx, internal.Actor{UserID: adminID, Role: custody.RoleAdmin})
	for _, dto := range sampleUnits() {
		_, err := s.Units.Create(actorCtx, dto)
		switch {
		case err == nil:
			report.UnitsCreated++
		case internal.HasCode(err, internal.ErrCodeConstraintViolation):
			report.UnitsSkipped++
		default:
			return nil, fmt.Errorf("seed unit %s: %w", dto.Code, err)
		}
	}

	for _, dto := range sampleScales(s.now()) {
		_, err := s.Scales.Create(actorCtx, dto)
		switch {
		case err == nil:
			report.ScalesCreated++
		case internal.HasCode(err, internal.ErrCodeConstraintViolation):
			report.ScalesSkipped++
		default:
			return nil, fmt.Errorf("seed scale %s: %w", dto.ScaleID, err)
		}
	}

	s.Logger.Info("seed complete",
		"admin_id", report.AdminID,
		"units_created", report.UnitsCreated,
		"scales_created", report.ScalesCreated)
	return report, nil
}

func (s *Seeder) ensureAdmin(ctx context.Context, dto user.CreateUserDTO) (int64, error) {
	created, err := s.Users.Bootstrap(ctx, dto)
	if err == nil {
		s.Logger.Info("bootstrap admin created", "user_id", created.ID, "dod_id", created.DodID)
		return created.ID, nil
	}
	if !internal.HasCode(err, internal.ErrCodeInvalidState) {
		return 0, fmt.Errorf("bootstrap admin: %w", err)
	}

	existing, err := s.UserStore.GetByDodID(ctx, dto.DodID)
	if err != nil {
		return 0, fmt.Errorf("load admin: %w", err)
	}
	if existing == nil || existing.Role != custody.RoleAdmin || !existing.IsActive {
		return 0, fmt.Errorf("users already exist and %s is not an active admin", dto.DodID)
	}
	return existing.ID, nil
}

func (s *Seeder) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func sampleUnits() []unit.CreateUnitDTO {
	desc := func(s string) *string { return &s }
	return []unit.CreateUnitDTO{
		{Name: "1st Battalion Supply", Code: "1BN-S4", Description: desc("Battalion supply section")},
		{Name: "Medical Logistics Company", Code: "MLC", Description: desc("Class VIII distribution")},
		{Name: "Field Laboratory Detachment", Code: "FLD", Description: desc("Deployable analytical lab")},
	}
}

// sampleScales covers every calibration state relative to now: current,
// inside the warning window, and past due.
func sampleScales(now time.Time) []scale.CreateScaleDTO {
	day := 24 * time.Hour
	interval := func(v int) *int { return &v }
	location := func(s string) *string { return &s }
	return []scale.CreateScaleDTO{
		{
			ScaleID: "SC-0001", SerialNumber: "B123456789", Model: "Explorer EX224",
			Manufacturer: "Ohaus", Capacity: "220g", Location: location("Supply cage A"),
			CalibrationDate: jsontime.New(now.Add(-90 * day)), CalibrationInterval: interval(365),
		},
		{
			ScaleID: "SC-0002", SerialNumber: "B223456789", Model: "Adventurer AX523",
			Manufacturer: "Ohaus", Capacity: "520g", Location: location("Supply cage A"),
			CalibrationDate: jsontime.New(now.Add(-350 * day)), CalibrationInterval: interval(365),
		},
		{
			ScaleID: "SC-0003", SerialNumber: "MS0398127", Model: "MS204TS",
			Manufacturer: "Mettler Toledo", Capacity: "220g", Location: location("Lab bench 2"),
			CalibrationDate: jsontime.New(now.Add(-800 * day)),
		},
		{
			ScaleID: "SC-0004", SerialNumber: "SQP-77310", Model: "Quintix 224",
			Manufacturer: "Sartorius", Capacity: "220g", Location: location("Lab bench 1"),
			CalibrationDate: jsontime.New(now.Add(-30 * day)),
		},
	}
}

package main

import (
	"fmt"
	"math/rand"
	"strings"

	lorem "github.com/HandmadeNetwork/golorem"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	"github.com/Kshitij83/skillcy/internal/repository"
	"github.com/Kshitij83/skillcy/internal/service"
)

const seedPassword = "skillcy-dev-password"

var seedTags = []string{"go", "sql", "devops", "design", "security", "data", "frontend", "career"}

func newSeedCommand() *cobra.Command {
	var users, courses int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill a development database with fake users, courses and libraries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if users <= 0 || courses < 0 {
				return fmt.Errorf("--users must be positive and --courses non-negative")
			}
			rt, err := loadEnvironment()
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := cmd.Context()
			db, err := rt.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			validate := validator.New()
			metrics := service.NewMetricsService()
			profiles := repository.NewProfileRepository(db)
			courseRepo := repository.NewCourseRepository(db)
			enrollments := repository.NewUserCourseRepository(db)
			trigger := service.NewStatsTrigger(profiles, metrics, rt.logger)

			auth := service.NewAuthService(db, repository.NewUserRepository(db), profiles, nil, validate, rt.logger, service.AuthConfig{
				AccessTokenSecret:  rt.cfg.JWT.Secret,
				AccessTokenExpiry:  rt.cfg.JWT.Expiration,
				RefreshTokenExpiry: rt.cfg.JWT.RefreshExpiration,
				Issuer:             rt.cfg.JWT.Issuer,
			})
			courseSvc := service.NewCourseService(db, courseRepo, enrollments, profiles, trigger, nil, validate, rt.logger, service.CourseServiceConfig{
				DefaultImageURL: rt.cfg.Courses.DefaultImageURL,
			})
			library := service.NewLibraryService(db, enrollments, courseRepo, profiles, trigger, validate, rt.logger)

			batch := strings.Split(uuid.NewString(), "-")[0]
			actors := make([]policy.Actor, 0, users)
			for i := 0; i < users; i++ {
				res, err := auth.Register(ctx, models.RegisterRequest{
					Email:    fmt.Sprintf("seed-%s-%d@example.com", batch, i),
					Password: seedPassword,
					FullName: lorem.Sentence(2, 3),
				})
				if err != nil {
					return fmt.Errorf("register user %d: %w", i, err)
				}
				actors = append(actors, policy.Actor{UserID: res.User.ID, Role: res.User.Role})
			}

			var created []*models.Course
			for i := 0; i < courses; i++ {
				owner := actors[rand.Intn(len(actors))]
				course, err := courseSvc.Create(ctx, owner, fakeCourse())
				if err != nil {
					return fmt.Errorf("create course %d: %w", i, err)
				}
				created = append(created, course)
			}

			enrolled := 0
			for _, actor := range actors {
				for _, course := range created {
					if course.AccessType != models.AccessPublic || rand.Intn(3) != 0 {
						continue
					}
					if _, err := library.Add(ctx, actor, models.AddToLibraryRequest{CourseID: course.ID}); err != nil {
						return fmt.Errorf("enroll %s in %s: %w", actor.UserID, course.ID, err)
					}
					enrolled++
					if rand.Intn(2) == 0 {
						done := true
						if _, err := library.SetCompleted(ctx, actor, course.ID, models.UpdateLibraryEntryRequest{Completed: &done}); err != nil {
							return fmt.Errorf("complete %s for %s: %w", course.ID, actor.UserID, err)
						}
					}
				}
			}

			rt.logger.Info("seed finished",
				zap.String("batch", batch),
				zap.Int("users", len(actors)),
				zap.Int("courses", len(created)),
				zap.Int("enrollments", enrolled),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d courses, %d enrollments (password %q)\n",
				len(actors), len(created), enrolled, seedPassword)
			return nil
		},
	}
	cmd.Flags().IntVar(&users, "users", 10, "number of users to create")
	cmd.Flags().IntVar(&courses, "courses", 25, "number of courses to create")
	return cmd
}

func fakeCourse() models.CourseRequest {
	title := strings.TrimSuffix(lorem.Sentence(3, 7), ".")
	description := lorem.Paragraph(1, 3)
	req := models.CourseRequest{
		Title:       title,
		Description: &description,
		AccessType:  pick(string(models.AccessPublic), string(models.AccessPublic), string(models.AccessPremium), string(models.AccessPrivate)),
		Tags:        []string{seedTags[rand.Intn(len(seedTags))], seedTags[rand.Intn(len(seedTags))]},
	}
	difficulty := pick(string(models.DifficultyBeginner), string(models.DifficultyIntermediate), string(models.DifficultyAdvanced))
	req.Difficulty = &difficulty

	switch rand.Intn(3) {
	case 0:
		url := "https://videos.example.com/" + uuid.NewString()
		req.ContentType, req.ContentURL = string(models.ContentTypeVideo), &url
	case 1:
		url := "https://files.example.com/" + uuid.NewString() + ".pdf"
		req.ContentType, req.ContentURL = string(models.ContentTypePDF), &url
	default:
		body := lorem.Paragraph(3, 6)
		req.ContentType, req.ContentText = string(models.ContentTypeText), &body
	}
	return req
}

func pick(options ...string) string {
	return options[rand.Intn(len(options))]
}

package principal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"curehub-backend/internal/auth"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrDuplicateIdentity  = errors.New("account with this email already exists")
	ErrNotFound           = errors.New("principal not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
)

type Service struct {
	repo              Repository
	location          *time.Location
	globalUniqueEmail bool
}

func NewService(repo Repository, location *time.Location, globalUniqueEmail bool) *Service {
	return &Service{
		repo:              repo,
		location:          location,
		globalUniqueEmail: globalUniqueEmail,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required"`
	Age      int    `json:"age" validate:"omitempty,gte=0,lte=130"`
	Mobile   string `json:"mobile" validate:"omitempty,phone"`
	Gender   string `json:"gender" validate:"omitempty,oneof=male female other"`
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Principal, error) {
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if !IsRegistrableRole(role) {
		return Principal{}, ErrInvalidRole
	}
	email := normalizeEmail(req.Email)

	if s.globalUniqueEmail {
		exists, err := s.repo.EmailExistsAnyRole(ctx, email)
		if err != nil {
			return Principal{}, err
		}
		if exists {
			return Principal{}, ErrDuplicateIdentity
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return Principal{}, err
	}

	now := time.Now().In(s.location)
	p := Principal{
		ID:           uuid.NewString(),
		Role:         role,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		Age:          req.Age,
		Gender:       strings.TrimSpace(req.Gender),
		Mobile:       strings.TrimSpace(req.Mobile),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Principal{}, ErrDuplicateIdentity
		}
		return Principal{}, err
	}
	return p, nil
}

// VerifyCredentials resolves (role, email) and compares the supplied password
// against the stored bcrypt hash. The bcrypt comparison is constant-time with
// respect to the hash contents.
func (s *Service) VerifyCredentials(ctx context.Context, role, email, password string) (Principal, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !IsValidRole(role) {
		return Principal{}, ErrInvalidRole
	}

	p, err := s.repo.GetByEmail(ctx, role, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}

	if err := auth.ComparePassword(p.PasswordHash, password); err != nil {
		return Principal{}, ErrInvalidCredentials
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Principal, error) {
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}
	return p, nil
}

// UpdateProfileRequest carries merge-patch semantics: only non-nil fields are
// written, everything else is left untouched.
type UpdateProfileRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1"`
	Password       *string `json:"password" validate:"omitempty,min=6"`
	Age            *int    `json:"age" validate:"omitempty,gte=0,lte=130"`
	Gender         *string `json:"gender" validate:"omitempty,oneof=male female other"`
	Mobile         *string `json:"mobile" validate:"omitempty,phone"`
	Specialization *string `json:"specialization"`
	Degree         *string `json:"degree"`
	Experience     *int    `json:"experience" validate:"omitempty,gte=0"`
	Bio            *string `json:"bio"`
}

func (s *Service) UpdateProfile(ctx context.Context, role, id string, req UpdateProfileRequest) (Principal, error) {
	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Age != nil {
		fields["age"] = *req.Age
	}
	if req.Gender != nil {
		fields["gender"] = *req.Gender
	}
	if req.Mobile != nil {
		fields["mobile"] = strings.TrimSpace(*req.Mobile)
	}
	if role == RoleDoctor {
		if req.Specialization != nil {
			fields["specialization"] = strings.TrimSpace(*req.Specialization)
		}
		if req.Degree != nil {
			fields["degree"] = strings.TrimSpace(*req.Degree)
		}
		if req.Experience != nil {
			fields["experience"] = *req.Experience
		}
		if req.Bio != nil {
			fields["bio"] = strings.TrimSpace(*req.Bio)
		}
	}
	// Rehash only when a plaintext password is part of the payload; an update
	// that omits the field must never touch the stored hash.
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return Principal{}, err
		}
		fields["passwordHash"] = hash
	}

	updated, err := s.repo.Update(ctx, role, strings.TrimSpace(id), fields, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}
	return updated, nil
}

type CreateDoctorRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// CreateDoctor provisions a doctor account with a random temporary password.
// The plaintext is returned once so the caller can hand it to the
// credential-delivery mailer; it is never stored.
func (s *Service) CreateDoctor(ctx context.Context, req CreateDoctorRequest) (Principal, string, error) {
	email := normalizeEmail(req.Email)

	if s.globalUniqueEmail {
		exists, err := s.repo.EmailExistsAnyRole(ctx, email)
		if err != nil {
			return Principal{}, "", err
		}
		if exists {
			return Principal{}, "", ErrDuplicateIdentity
		}
	}

	tempPassword, err := randomPassword()
	if err != nil {
		return Principal{}, "", err
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return Principal{}, "", err
	}

	now := time.Now().In(s.location)
	doctor := Principal{
		ID:           uuid.NewString(),
		Role:         RoleDoctor,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Insert(ctx, doctor); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Principal{}, "", ErrDuplicateIdentity
		}
		return Principal{}, "", err
	}
	return doctor, tempPassword, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Principal, error) {
	return s.repo.ListByRole(ctx, RoleDoctor, 0, 0)
}

func (s *Service) ListDoctorsPage(ctx context.Context, limit, offset int64) ([]Principal, error) {
	return s.repo.ListByRole(ctx, RoleDoctor, limit, offset)
}

func (s *Service) DeleteDoctor(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, RoleDoctor, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomPassword() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

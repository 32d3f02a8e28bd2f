package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/textlane/textlane/internal/apikey/domain"
	"github.com/textlane/textlane/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keyPrefix = "tx_"

	// shortKeyLen covers the prefix plus the first eight secret characters,
	// enough to narrow lookup without leaking meaningful entropy.
	shortKeyLen = 11

	touchTimeout = 5 * time.Second
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  apikeydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  apikeydomain.Repository
	genID *snowflake.Node
	clock clock.Clock

	// touch is called after a successful authentication; tests replace it
	// to run synchronously.
	touch func(id snowflake.ID)
}

func New(p Params) apikeydomain.Service {
	s := &Service{
		db:    p.DB,
		log:   p.Log.Named("apikey.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
	s.touch = s.touchAsync
	return s
}

func (s *Service) Issue(ctx context.Context, req apikeydomain.IssueRequest) (*apikeydomain.Issued, error) {
	if req.OrgID == 0 {
		return nil, apikeydomain.ErrInvalidOrganization
	}
	if req.UserID == 0 {
		return nil, apikeydomain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}
	if !apikeydomain.ValidPermission(req.Permission) {
		return nil, apikeydomain.ErrInvalidPermission
	}

	plaintext, err := newSecret()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	key := &apikeydomain.APIKey{
		ID:         s.genID.Generate(),
		OrgID:      req.OrgID,
		UserID:     req.UserID,
		Name:       name,
		KeyHash:    hashKey(plaintext),
		ShortKey:   plaintext[:shortKeyLen],
		Permission: req.Permission,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	s.log.Info("api key issued",
		zap.String("org_id", req.OrgID.String()),
		zap.String("short_key", key.ShortKey),
		zap.String("permission", key.Permission),
	)

	return &apikeydomain.Issued{
		ID:           key.ID.String(),
		Name:         key.Name,
		PlaintextKey: plaintext,
		ShortKey:     key.ShortKey,
		Permission:   key.Permission,
		CreatedAt:    key.CreatedAt,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, presentedKey string) (*apikeydomain.Identity, error) {
	presented := strings.TrimSpace(presentedKey)
	if len(presented) < shortKeyLen || !strings.HasPrefix(presented, keyPrefix) {
		return nil, apikeydomain.ErrInvalidCredential
	}

	candidates, err := s.repo.FindByShortKey(ctx, s.db, presented[:shortKeyLen])
	if err != nil {
		return nil, err
	}

	presentedHash := hashKey(presented)
	for i := range candidates {
		key := &candidates[i]
		if subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(presentedHash)) != 1 {
			continue
		}
		if !key.IsActive {
			return nil, apikeydomain.ErrInactive
		}

		s.touch(key.ID)
		return &apikeydomain.Identity{
			KeyID:      key.ID,
			OrgID:      key.OrgID,
			UserID:     key.UserID,
			Permission: key.Permission,
		}, nil
	}
	return nil, apikeydomain.ErrInvalidCredential
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]apikeydomain.View, error) {
	if orgID == 0 {
		return nil, apikeydomain.ErrInvalidOrganization
	}

	keys, err := s.repo.ListByOrg(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	views := make([]apikeydomain.View, 0, len(keys))
	for _, key := range keys {
		views = append(views, apikeydomain.View{
			ID:         key.ID.String(),
			Name:       key.Name,
			ShortKey:   key.ShortKey,
			Permission: key.Permission,
			IsActive:   key.IsActive,
			LastUsedAt: key.LastUsedAt,
			CreatedAt:  key.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) Revoke(ctx context.Context, orgID, keyID snowflake.ID) error {
	if orgID == 0 {
		return apikeydomain.ErrInvalidOrganization
	}

	updated, err := s.repo.Deactivate(ctx, s.db, orgID, keyID, s.clock.Now())
	if err != nil {
		return err
	}
	if updated == 0 {
		return apikeydomain.ErrNotFound
	}
	return nil
}

// touchAsync records the use off the request path. A failed touch is logged
// and dropped; it never affects the authentication result.
func (s *Service) touchAsync(id snowflake.ID) {
	now := s.clock.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()
		if err := s.repo.TouchLastUsed(ctx, s.db, id, now); err != nil {
			s.log.Warn("last-used update failed",
				zap.String("key_id", id.String()),
				zap.Error(err),
			)
		}
	}()
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return keyPrefix + hex.EncodeToString(buf), nil
}

func hashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

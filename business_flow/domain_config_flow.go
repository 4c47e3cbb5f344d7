package businessflow

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
	"gorm.io/datatypes"
)

const (
	DefaultDomainConfigTTL = 5 * time.Minute
	domainConfigCacheKey   = "domain_config:"
)

// ResolveDomain maps a request host such as "acme.viewiq.com:443" to its white-label domain "acme".
// Hosts without a tenant sub-domain resolve to the default domain.
func ResolveDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.IndexByte(host, ','); i >= 0 {
		host = strings.TrimSpace(host[:i])
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" || net.ParseIP(host) != nil {
		return utils.DefaultDomain
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 || parts[0] == "www" || parts[0] == "" {
		return utils.DefaultDomain
	}
	return parts[0]
}

// DomainConfigFlow serves and manages white-label configs
type DomainConfigFlow interface {
	// GetConfig returns the config for the request host, falling back to the default domain
	GetConfig(ctx context.Context, host string) (*dto.DomainConfigResponse, error)
	List(ctx context.Context, q *dto.PageQuery) (*dto.Page[dto.DomainConfigResponse], error)
	Get(ctx context.Context, id uint) (*dto.DomainConfigResponse, error)
	Create(ctx context.Context, req *dto.DomainConfigRequest) (*dto.DomainConfigResponse, error)
	Update(ctx context.Context, id uint, req *dto.UpdateDomainConfigRequest) (*dto.DomainConfigResponse, error)
	Delete(ctx context.Context, id uint) error
}

// DomainConfigFlowImpl implements the white-label business flow
type DomainConfigFlowImpl struct {
	repo  repository.DomainConfigRepository
	cache services.Cache
	ttl   time.Duration
}

// NewDomainConfigFlow creates a new domain config flow instance
func NewDomainConfigFlow(repo repository.DomainConfigRepository, cache services.Cache, ttl time.Duration) DomainConfigFlow {
	if cache == nil {
		cache = services.NoopCache{}
	}
	if ttl <= 0 {
		ttl = DefaultDomainConfigTTL
	}
	return &DomainConfigFlowImpl{repo: repo, cache: cache, ttl: ttl}
}

func toDomainConfigResponse(c *models.DomainConfig) *dto.DomainConfigResponse {
	cfg := map[string]any(c.Config)
	if cfg == nil {
		cfg = map[string]any{}
	}
	return &dto.DomainConfigResponse{ID: c.ID, Domain: c.Domain, Config: cfg}
}

func (f *DomainConfigFlowImpl) GetConfig(ctx context.Context, host string) (*dto.DomainConfigResponse, error) {
	domain := ResolveDomain(host)
	var cached dto.DomainConfigResponse
	if hit, err := f.cache.GetJSON(ctx, domainConfigCacheKey+domain, &cached); err != nil {
		slog.WarnContext(ctx, "domain config cache read failed", "domain", domain, "error", err)
	} else if hit {
		return &cached, nil
	}

	cfg, err := f.repo.ByDomain(ctx, domain)
	if err != nil {
		return nil, internal("DOMAIN_CONFIG_LOOKUP_FAILED", "Failed to load config", err)
	}
	if cfg == nil && domain != utils.DefaultDomain {
		if cfg, err = f.repo.ByDomain(ctx, utils.DefaultDomain); err != nil {
			return nil, internal("DOMAIN_CONFIG_LOOKUP_FAILED", "Failed to load config", err)
		}
	}
	resp := &dto.DomainConfigResponse{Domain: utils.DefaultDomain, Config: map[string]any{}}
	if cfg != nil {
		resp = toDomainConfigResponse(cfg)
	}
	if err := f.cache.SetJSON(ctx, domainConfigCacheKey+domain, resp, f.ttl); err != nil {
		slog.WarnContext(ctx, "domain config cache write failed", "domain", domain, "error", err)
	}
	return resp, nil
}

// bust drops the cached configs of domains; hosts served the default config expire with the TTL
func (f *DomainConfigFlowImpl) bust(ctx context.Context, domains ...string) {
	keys := make([]string, 0, len(domains))
	for _, d := range domains {
		keys = append(keys, domainConfigCacheKey+d)
	}
	if err := f.cache.Delete(ctx, keys...); err != nil {
		slog.WarnContext(ctx, "domain config cache bust failed", "domains", domains, "error", err)
	}
}

func (f *DomainConfigFlowImpl) List(ctx context.Context, q *dto.PageQuery) (*dto.Page[dto.DomainConfigResponse], error) {
	if _, err := requireCapability(ctx, models.CapabilityDomainManagerRead); err != nil {
		return nil, err
	}
	p := newPagination(q.Page, q.Size)
	filter := models.DomainConfigFilter{}
	if s := optionalString(q.Search); s != nil {
		filter.Domain = utils.ToPtr(strings.ToLower(*s))
	}
	total, err := f.repo.Count(ctx, filter)
	if err != nil {
		return nil, internal("DOMAIN_CONFIG_LIST_FAILED", "Failed to list domain configs", err)
	}
	rows, err := f.repo.ByFilter(ctx, filter, "domain ASC", p.Size, p.Offset)
	if err != nil {
		return nil, internal("DOMAIN_CONFIG_LIST_FAILED", "Failed to list domain configs", err)
	}
	items := make([]dto.DomainConfigResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, *toDomainConfigResponse(row))
	}
	return newPage(p, items, total), nil
}

func (f *DomainConfigFlowImpl) load(ctx context.Context, id uint) (*models.DomainConfig, error) {
	cfg, err := f.repo.ByID(ctx, id)
	if err != nil {
		return nil, internal("DOMAIN_CONFIG_LOOKUP_FAILED", "Failed to load domain config", err)
	}
	if cfg == nil {
		return nil, notFound("DOMAIN_CONFIG_NOT_FOUND", "Domain config not found", ErrDomainConfigNotFound)
	}
	return cfg, nil
}

func (f *DomainConfigFlowImpl) Get(ctx context.Context, id uint) (*dto.DomainConfigResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityDomainManagerRead); err != nil {
		return nil, err
	}
	cfg, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDomainConfigResponse(cfg), nil
}

func duplicateDomain(domain string) *BusinessError {
	return NewBusinessErrorf("DUPLICATE_DOMAIN", "A config for domain %s already exists.", ErrDuplicateDomain, domain)
}

func (f *DomainConfigFlowImpl) Create(ctx context.Context, req *dto.DomainConfigRequest) (*dto.DomainConfigResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityDomainManagerCreate); err != nil {
		return nil, err
	}
	cfg := &models.DomainConfig{
		Domain: strings.ToLower(strings.TrimSpace(req.Domain)),
		Config: datatypes.JSONMap(req.Config),
	}
	if err := f.repo.Save(ctx, cfg); err != nil {
		if repository.IsDuplicate(err) {
			return nil, duplicateDomain(cfg.Domain)
		}
		return nil, internal("DOMAIN_CONFIG_SAVE_FAILED", "Failed to save domain config", err)
	}
	f.bust(ctx, cfg.Domain)
	return toDomainConfigResponse(cfg), nil
}

func (f *DomainConfigFlowImpl) Update(ctx context.Context, id uint, req *dto.UpdateDomainConfigRequest) (*dto.DomainConfigResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityDomainManagerCreate); err != nil {
		return nil, err
	}
	cfg, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := cfg.Domain
	if req.Domain != nil {
		cfg.Domain = strings.ToLower(strings.TrimSpace(*req.Domain))
	}
	if req.Config != nil {
		cfg.Config = datatypes.JSONMap(req.Config)
	}
	cfg.UpdatedAt = utils.UTCNow()
	if err := f.repo.Update(ctx, cfg); err != nil {
		if repository.IsDuplicate(err) {
			return nil, duplicateDomain(cfg.Domain)
		}
		return nil, internal("DOMAIN_CONFIG_SAVE_FAILED", "Failed to save domain config", err)
	}
	f.bust(ctx, previous, cfg.Domain)
	return toDomainConfigResponse(cfg), nil
}

func (f *DomainConfigFlowImpl) Delete(ctx context.Context, id uint) error {
	if _, err := requireCapability(ctx, models.CapabilityDomainManagerDelete); err != nil {
		return err
	}
	cfg, err := f.load(ctx, id)
	if err != nil {
		return err
	}
	if _, err := f.repo.Delete(ctx, cfg.ID); err != nil {
		return internal("DOMAIN_CONFIG_DELETE_FAILED", "Failed to delete domain config", err)
	}
	f.bust(ctx, cfg.Domain)
	return nil
}

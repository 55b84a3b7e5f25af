package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fatflowers/gympass/internal/models"
	"github.com/fatflowers/gympass/pkg/apperr"
	cfgpkg "github.com/fatflowers/gympass/pkg/config"
	"github.com/fatflowers/gympass/pkg/tool"
	"github.com/fatflowers/gympass/pkg/types"
	"github.com/samber/lo"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StatisticType string

const (
	// Purchases and GMV, complimentary grants excluded
	StatisticTypeDailyPurchaseCount StatisticType = "daily_purchase_count"
	StatisticTypeDailyGmv           StatisticType = "daily_gmv"
	StatisticTypeTotalGmv           StatisticType = "total_gmv"

	// Members
	StatisticTypeActiveMemberCount           StatisticType = "active_member_count"
	StatisticTypeActivePlanDistribution      StatisticType = "active_plan_distribution"
	StatisticTypeDailyNewMemberCount         StatisticType = "daily_new_member_count"
	StatisticTypeDailyAccumulatedMemberCount StatisticType = "daily_accumulated_member_count"
)

// Filter fields that only apply to some statistic types
type MembershipStatisticFilterType string

const (
	MembershipStatisticFilterTypeIsFirstPurchase MembershipStatisticFilterType = "is_first_purchase"
	MembershipStatisticFilterTypePlanID          MembershipStatisticFilterType = "plan_id"
	MembershipStatisticFilterTypeSource          MembershipStatisticFilterType = "source"
	MembershipStatisticFilterTypeCurrency        MembershipStatisticFilterType = "currency"
)

var filterTypes = []MembershipStatisticFilterType{
	MembershipStatisticFilterTypeIsFirstPurchase,
	MembershipStatisticFilterTypePlanID,
	MembershipStatisticFilterTypeSource,
	MembershipStatisticFilterTypeCurrency,
}

var validFilters = map[MembershipStatisticFilterType][]StatisticType{
	MembershipStatisticFilterTypeIsFirstPurchase: {StatisticTypeDailyPurchaseCount, StatisticTypeDailyGmv},
	MembershipStatisticFilterTypePlanID:          {StatisticTypeDailyPurchaseCount, StatisticTypeDailyGmv},
	MembershipStatisticFilterTypeSource:          {StatisticTypeDailyPurchaseCount, StatisticTypeDailyGmv},
	MembershipStatisticFilterTypeCurrency:        {StatisticTypeDailyPurchaseCount, StatisticTypeDailyGmv, StatisticTypeTotalGmv},
}

// filterColumns are the fields a client may filter on.
var filterColumns = map[string]bool{
	"is_first_purchase": true,
	"plan_id":           true,
	"source":            true,
	"currency":          true,
	"created_at":        true,
}

type MembershipStatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type MembershipStatisticRequest struct {
	Filters   []*types.CommonFilter          `json:"filters"`
	DataItems []*MembershipStatisticDataItem `json:"data_items"`
}

// GetFilters keeps the filters that apply to statisticType.
func (f *MembershipStatisticRequest) GetFilters(statisticType StatisticType) *MembershipStatisticRequest {
	if f == nil || len(f.Filters) == 0 {
		return &MembershipStatisticRequest{}
	}
	var result MembershipStatisticRequest
	for _, filter := range f.Filters {
		if statisticTypes, ok := validFilters[MembershipStatisticFilterType(filter.Field)]; ok {
			if lo.Contains(statisticTypes, statisticType) {
				result.Filters = append(result.Filters, filter)
			}
		} else {
			result.Filters = append(result.Filters, filter)
		}
	}
	return &result
}

// Build composes a WHERE clause, mapping is_first_purchase onto the
// purchase extra column.
func (f *MembershipStatisticRequest) Build(builder clause.Builder) {
	if len(f.Filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, filter := range f.Filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		switch filter.Field {
		case string(MembershipStatisticFilterTypeIsFirstPurchase):
			if len(filter.Values) > 0 && fmt.Sprint(filter.Values[0]) == "true" {
				builder.WriteString("extra->>'is_first_purchase' = 'true'")
			} else {
				builder.WriteString("(extra->>'is_first_purchase' = 'false' OR extra->>'is_first_purchase' IS NULL)")
			}
		default:
			filter.Build(builder)
		}
	}
}

type MembershipStatisticResponseDataItem struct {
	Date  string `json:"date"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type MembershipStatisticResponse struct {
	DataItems map[StatisticType][]MembershipStatisticResponseDataItem `json:"data_items"`
}

// Service computes admin dashboard statistics over purchases and members.
type Service struct {
	db  *gorm.DB
	cfg *cfgpkg.Config
	now func() time.Time
}

func New(db *gorm.DB, cfg *cfgpkg.Config) *Service { return &Service{db: db, cfg: cfg, now: time.Now} }

func (s *Service) today() time.Time { return tool.DateOf(s.now(), s.cfg.Location()) }

func (s *Service) getDailyPurchaseCount(ctx context.Context, request *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var results []MembershipStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Purchase{}).TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(*) as value").
		Where("provider_id != ?", types.PaymentProviderInner).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyPurchaseCount)}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order("date")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyGmv(ctx context.Context, request *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var results []MembershipStatisticResponseDataItem
	q := s.db.WithContext(ctx).Table((models.Purchase{}).TableName()).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, currency AS label, sum(amount) as value").
		Where("provider_id != ?", types.PaymentProviderInner).
		Where(clause.Where{Exprs: []clause.Expression{request.GetFilters(StatisticTypeDailyGmv)}}).
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Group("currency").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getTotalGmv(ctx context.Context, _ *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var results []MembershipStatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH min_max_dates AS (
    SELECT MIN(DATE(created_at)) as min_date, MAX(DATE(created_at)) as max_date
    FROM purchase
),
dates AS (
    SELECT TO_CHAR(generate_series(min_date, max_date, '1 day'::interval), 'YYYY-MM-DD') as date FROM min_max_dates
),
currencies AS (
    SELECT DISTINCT currency as label FROM purchase WHERE provider_id != ?
),
gmv_date AS (
    SELECT d.date, c.label, COALESCE(SUM(p.amount), 0) as value
    FROM dates d
    CROSS JOIN currencies c
    LEFT JOIN purchase p
      ON TO_CHAR(p.created_at, 'YYYY-MM-DD') = d.date
     AND p.currency = c.label
     AND p.provider_id != ?
    GROUP BY d.date, c.label
)
SELECT d.date as date, d.label as label, SUM(s.value) as value
FROM gmv_date d
LEFT JOIN gmv_date s ON s.date <= d.date AND s.label = d.label
GROUP BY d.date, d.label
ORDER BY d.date DESC, d.label ASC
`, types.PaymentProviderInner, types.PaymentProviderInner).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getActiveMemberCount(ctx context.Context, _ *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var count int64
	today := s.today()
	err := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("expiration_date >= ?", today).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	return []MembershipStatisticResponseDataItem{{Date: today.Format(time.DateOnly), Value: count}}, nil
}

func (s *Service) getActivePlanDistribution(ctx context.Context, _ *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var results []MembershipStatisticResponseDataItem
	today := s.today()
	q := s.db.WithContext(ctx).Model(&models.Member{}).
		Select("? as date, subscription_type as label, count(*) as value", today.Format(time.DateOnly)).
		Where("expiration_date >= ?", today).
		Group("subscription_type").
		Order("value DESC")
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyNewMemberCount(ctx context.Context, _ *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var results []MembershipStatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.Member{}).
		Select("TO_CHAR(created_at, 'YYYY-MM-DD') as date, count(*) as value").
		Group("TO_CHAR(created_at, 'YYYY-MM-DD')").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDailyAccumulatedMemberCount(ctx context.Context, _ *MembershipStatisticRequest) ([]MembershipStatisticResponseDataItem, error) {
	var results []MembershipStatisticResponseDataItem
	err := s.db.WithContext(ctx).Raw(`
WITH min_max_dates AS (
    SELECT MIN(DATE(created_at)) as min_date, MAX(DATE(created_at)) as max_date FROM member
),
distinct_dates AS (
    SELECT generate_series(min_date, max_date, '1 day'::interval) as date FROM min_max_dates
)
SELECT TO_CHAR(d.date, 'YYYY-MM-DD') as date, COUNT(m.id) as value
FROM distinct_dates d
LEFT JOIN member m ON DATE(m.created_at) <= d.date
GROUP BY d.date
ORDER BY d.date DESC
`).Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getMembershipStatistic(ctx context.Context, request *MembershipStatisticRequest, dataItem *MembershipStatisticDataItem) ([]MembershipStatisticResponseDataItem, error) {
	switch dataItem.ID {
	case StatisticTypeDailyPurchaseCount:
		return s.getDailyPurchaseCount(ctx, request)
	case StatisticTypeDailyGmv:
		return s.getDailyGmv(ctx, request)
	case StatisticTypeTotalGmv:
		return s.getTotalGmv(ctx, request)
	case StatisticTypeActiveMemberCount:
		return s.getActiveMemberCount(ctx, request)
	case StatisticTypeActivePlanDistribution:
		return s.getActivePlanDistribution(ctx, request)
	case StatisticTypeDailyNewMemberCount:
		return s.getDailyNewMemberCount(ctx, request)
	case StatisticTypeDailyAccumulatedMemberCount:
		return s.getDailyAccumulatedMemberCount(ctx, request)
	default:
		return nil, fmt.Errorf("%w: invalid data item id: %s", apperr.ErrValidation, dataItem.ID)
	}
}

// GetDailyMembershipStatistic computes every requested data item
// concurrently. Items excluded by a filter come back as nil.
func (s *Service) GetDailyMembershipStatistic(ctx context.Context, request *MembershipStatisticRequest) (*MembershipStatisticResponse, error) {
	for _, f := range request.Filters {
		if f != nil && f.Field == string(MembershipStatisticFilterTypeIsFirstPurchase) {
			if len(f.Values) == 0 {
				return nil, fmt.Errorf("%w: is_first_purchase needs a value", apperr.ErrValidation)
			}
			continue
		}
		if err := f.Validate(filterColumns); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
		}
	}

	var mu sync.Mutex
	results := make(map[StatisticType][]MembershipStatisticResponseDataItem, len(request.DataItems))
	g, gctx := errgroup.WithContext(ctx)

	for _, item := range request.DataItems {
		g.Go(func() error {
			for _, filter := range request.Filters {
				ft := MembershipStatisticFilterType(filter.Field)
				if lo.Contains(filterTypes, ft) && !lo.Contains(validFilters[ft], item.ID) {
					mu.Lock()
					results[item.ID] = nil
					mu.Unlock()
					return nil
				}
			}
			res, err := s.getMembershipStatistic(gctx, request, item)
			if err != nil {
				return err
			}
			mu.Lock()
			results[item.ID] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &MembershipStatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// SeedConfig 啟動時寫入的初始商品與折扣碼，已存在的 code 不覆蓋
type SeedConfig struct {
	Products  []SeedProduct  `yaml:"products"`
	Discounts []SeedDiscount `yaml:"discounts"`
}

type SeedProduct struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int    `yaml:"stock"`
}

type SeedDiscount struct {
	Code             string     `yaml:"code"`
	Kind             string     `yaml:"kind"`
	Percentage       string     `yaml:"percentage"`
	FixedAmount      string     `yaml:"fixed_amount"`
	MinOrderAmount   string     `yaml:"min_order_amount"`
	MaxUses          *int       `yaml:"max_uses"`
	SingleUsePerUser bool       `yaml:"single_use_per_user"`
	ExpiresAt        *time.Time `yaml:"expires_at"`
	Active           *bool      `yaml:"active"`
}

func LoadSeedConfig(path string) (*SeedConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &SeedConfig{}
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (s *SeedConfig) ProductModels() ([]model.Product, error) {
	products := make([]model.Product, 0, len(s.Products))
	for _, p := range s.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("product %s price: %w", p.Code, err)
		}
		if p.Stock < 0 {
			return nil, fmt.Errorf("product %s stock must not be negative", p.Code)
		}
		products = append(products, model.Product{
			Code:  p.Code,
			Name:  p.Name,
			Price: price,
			Stock: p.Stock,
		})
	}
	return products, nil
}

func (s *SeedConfig) DiscountModels() ([]model.Discount, error) {
	discounts := make([]model.Discount, 0, len(s.Discounts))
	for _, d := range s.Discounts {
		discount := model.Discount{
			Code:             d.Code,
			Kind:             model.DiscountKind(d.Kind),
			MaxUses:          d.MaxUses,
			SingleUsePerUser: d.SingleUsePerUser,
			ExpiresAt:        d.ExpiresAt,
			Active:           d.Active == nil || *d.Active,
		}

		var err error
		switch discount.Kind {
		case model.DiscountKindPercentage:
			discount.Percentage, err = nullDecimal(d.Percentage)
		case model.DiscountKindFixed:
			discount.FixedAmount, err = nullDecimal(d.FixedAmount)
		default:
			err = fmt.Errorf("unknown kind %q", d.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("discount %s: %w", d.Code, err)
		}

		if d.MinOrderAmount != "" {
			if discount.MinOrderAmount, err = nullDecimal(d.MinOrderAmount); err != nil {
				return nil, fmt.Errorf("discount %s min_order_amount: %w", d.Code, err)
			}
		}
		discounts = append(discounts, discount)
	}
	return discounts, nil
}

func nullDecimal(v string) (decimal.NullDecimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

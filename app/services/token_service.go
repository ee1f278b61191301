package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/Kusanagi/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// UnsubscribeTokenService signs and validates the tokens embedded in
// unsubscribe URLs so a link can only act on the subscriber it was issued for
type UnsubscribeTokenService interface {
	Generate(campaignUID, subscriberUID string) (string, error)
	Validate(token string) (*UnsubscribeClaims, error)
}

// UnsubscribeClaims represents the claims in an unsubscribe token
type UnsubscribeClaims struct {
	CampaignUID   string    `json:"campaign_uid"`
	SubscriberUID string    `json:"subscriber_uid"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	TokenID       string    `json:"jti"`
}

// UnsubscribeTokenServiceImpl implements UnsubscribeTokenService with HS256
type UnsubscribeTokenServiceImpl struct {
	tokenTTL  time.Duration
	secretKey []byte
	issuer    string
	audience  string
}

// NewUnsubscribeTokenService creates a new unsubscribe token service
func NewUnsubscribeTokenService(tokenTTL time.Duration, issuer, audience, secretKey string) (UnsubscribeTokenService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required")
	}

	return &UnsubscribeTokenServiceImpl{
		tokenTTL:  tokenTTL,
		secretKey: []byte(secretKey),
		issuer:    issuer,
		audience:  audience,
	}, nil
}

// Generate creates a signed token binding a campaign and subscriber pair
func (s *UnsubscribeTokenServiceImpl) Generate(campaignUID, subscriberUID string) (string, error) {
	now := utils.UTCNow()

	tokenID, err := generateTokenID()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"campaign_uid":   campaignUID,
		"subscriber_uid": subscriberUID,
		"jti":            tokenID,
		"iat":            now.Unix(),
		"exp":            now.Add(s.tokenTTL).Unix(),
		"iss":            s.issuer,
		"aud":            s.audience,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", err
	}

	return signedString, nil
}

// Validate validates an unsubscribe token and returns its claims
func (s *UnsubscribeTokenServiceImpl) Validate(token string) (*UnsubscribeClaims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return s.secretKey, nil
	})
	if err != nil {
		// Check if the error is due to token expiration
		if strings.Contains(err.Error(), "expired") || strings.Contains(err.Error(), "exp") {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	// Extract claims
	campaignUID, ok := claims["campaign_uid"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	subscriberUID, ok := claims["subscriber_uid"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}

	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	// Check if token has expired
	if utils.UTCNow().After(time.Unix(int64(expiresAt), 0)) {
		return nil, ErrTokenExpired
	}

	return &UnsubscribeClaims{
		CampaignUID:   campaignUID,
		SubscriberUID: subscriberUID,
		TokenID:       tokenID,
		IssuedAt:      time.Unix(int64(issuedAt), 0),
		ExpiresAt:     time.Unix(int64(expiresAt), 0),
	}, nil
}

// generateTokenID generates a unique token ID
func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", bytes), nil
}

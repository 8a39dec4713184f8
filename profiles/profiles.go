package profiles

import (
	"context"
	"fmt"
	"net/url"
	"sync"
)

// Profile é o perfil devolvido pela API, sem esquema fixo.
type Profile map[string]interface{}

// Str devolve um campo textual do perfil, ou "" quando ausente.
func (p Profile) Str(field string) string {
	s, _ := p[field].(string)
	return s
}

// GetOwnProfile lê o perfil do dono da conta.
func (c *Client) GetOwnProfile(ctx context.Context, accountID, provider string) (Profile, error) {
	if accountID == "" {
		return nil, ErrEmptyIdentifier
	}
	data, err := c.Get(ctx, profilePath(accountID), url.Values{"provider": {providerOrDefault(provider)}})
	if err != nil {
		return nil, fmt.Errorf("get own profile: %w", err)
	}
	return Profile(data), nil
}

// GetUserProfile lê o perfil de outro usuário. identifier pode ser a URL do
// perfil, o username ou o id do provedor.
func (c *Client) GetUserProfile(ctx context.Context, accountID, identifier, provider string) (Profile, error) {
	if accountID == "" || identifier == "" {
		return nil, ErrEmptyIdentifier
	}
	params := url.Values{
		"provider":   {providerOrDefault(provider)},
		"identifier": {identifier},
	}
	data, err := c.Get(ctx, profilePath(accountID), params)
	if err != nil {
		return nil, fmt.Errorf("get profile for identifier %s: %w", identifier, err)
	}
	return Profile(data), nil
}

func (c *Client) GetUserProfileByURL(ctx context.Context, accountID, profileURL, provider string) (Profile, error) {
	return c.GetUserProfile(ctx, accountID, profileURL, provider)
}

func (c *Client) GetUserProfileByUsername(ctx context.Context, accountID, username, provider string) (Profile, error) {
	return c.GetUserProfile(ctx, accountID, username, provider)
}

// Comparison traz os dois perfis comparados. Em falha parcial, o perfil que
// foi lido continua disponível e Err1/Err2 indicam o que falhou.
type Comparison struct {
	Profile1 Profile
	Profile2 Profile
	Err1     error
	Err2     error
}

// OK informa se os dois perfis foram lidos.
func (c Comparison) OK() bool {
	return c.Err1 == nil && c.Err2 == nil
}

// Err junta as falhas, ou nil quando as duas leituras tiveram sucesso.
func (c Comparison) Err() error {
	switch {
	case c.Err1 != nil && c.Err2 != nil:
		return fmt.Errorf("profile 1: %w; profile 2: %v", c.Err1, c.Err2)
	case c.Err1 != nil:
		return fmt.Errorf("profile 1: %w", c.Err1)
	case c.Err2 != nil:
		return fmt.Errorf("profile 2: %w", c.Err2)
	}
	return nil
}

// CompareProfiles lê os dois perfis em paralelo.
func (c *Client) CompareProfiles(ctx context.Context, accountID, identifier1, identifier2, provider string) Comparison {
	var (
		out Comparison
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		out.Profile1, out.Err1 = c.GetUserProfile(ctx, accountID, identifier1, provider)
	}()
	go func() {
		defer wg.Done()
		out.Profile2, out.Err2 = c.GetUserProfile(ctx, accountID, identifier2, provider)
	}()
	wg.Wait()
	return out
}

func profilePath(accountID string) string {
	return "/api/v1/users/" + url.PathEscape(accountID) + "/profile"
}

func providerOrDefault(p string) string {
	if p == "" {
		return DefaultProvider
	}
	return p
}

package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/participadf/ouvidoria/internal/auth"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/store"
)

func newFixture(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	hash, err := auth.Hash("kl")
	require.NoError(t, err)

	st := store.New(
		ouvidoria.User{Username: "ad", CPF: "000.000.000-00", PasswordHash: hash, Name: "Administrador Global", Role: ouvidoria.RoleAdmin},
		ouvidoria.User{Username: "atendente", CPF: "000.000.000-02", PasswordHash: hash, Role: ouvidoria.RoleAttendant},
		ouvidoria.User{Username: "111.111.111-11", CPF: "111.111.111-11", PasswordHash: hash, Name: "Ana Souza", Role: ouvidoria.RoleCitizen},
	)

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	seed := []ouvidoria.Manifestation{
		{Protocol: "OUV-2026-AAA001", Type: ouvidoria.TipoReclamacao, Subject: "Buraco na via", OwnerCPF: "111.111.111-11", Status: ouvidoria.StatusConcluido, Local: "Ceilândia", Date: base},
		{Protocol: "OUV-2026-AAA002", Type: ouvidoria.TipoElogio, Subject: "Atendimento UBS", Status: ouvidoria.StatusEmAnalise, Local: "Gama", Date: base.Add(time.Hour)},
		{Protocol: "OUV-2026-AAA003", Type: ouvidoria.TipoReclamacao, Subject: "Iluminação", OwnerCPF: "222.222.222-22", Status: ouvidoria.StatusConcluido, Local: "Ceilândia", Date: base.Add(2 * time.Hour)},
		{Protocol: "OUV-2026-AAA004", Type: ouvidoria.TipoDenuncia, Subject: "Lixo", IsAnonymous: true, Status: ouvidoria.StatusEmAndamento, Date: base.Add(3 * time.Hour)},
	}
	for _, m := range seed {
		st.SaveManifestation(m)
	}

	svc := NewService(store.NewRepository(st), st)
	svc.now = func() time.Time { return base.Add(48 * time.Hour) }
	return svc, st
}

func TestSummary(t *testing.T) {
	svc, _ := newFixture(t)

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.ByStatus[ouvidoria.StatusConcluido])
	assert.Equal(t, 1, sum.ByStatus[ouvidoria.StatusEmAnalise])
	assert.Equal(t, 1, sum.ByStatus[ouvidoria.StatusEmAndamento])
	assert.Equal(t, 0, sum.ByStatus[ouvidoria.StatusRecusado])
}

func TestListFilters(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"sem filtro", Filter{}, []string{"OUV-2026-AAA001", "OUV-2026-AAA002", "OUV-2026-AAA003", "OUV-2026-AAA004"}},
		{"concluído mantém ordem", Filter{Status: ouvidoria.StatusConcluido}, []string{"OUV-2026-AAA001", "OUV-2026-AAA003"}},
		{"busca por assunto", Filter{Search: "ILUMIN"}, []string{"OUV-2026-AAA003"}},
		{"busca por cpf", Filter{Search: "111.111"}, []string{"OUV-2026-AAA001"}},
		{"busca por protocolo", Filter{Search: "aaa004"}, []string{"OUV-2026-AAA004"}},
		{"tipo e local", Filter{Tipo: ouvidoria.TipoReclamacao, Local: "Ceilândia"}, []string{"OUV-2026-AAA001", "OUV-2026-AAA003"}},
		{"nada", Filter{Search: "inexistente"}, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := svc.List(ctx, tc.filter)
			require.NoError(t, err)
			var got []string
			for _, m := range items {
				got = append(got, m.Protocol)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSetStatus(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	m, err := svc.SetStatus(ctx, "OUV-2026-AAA001", "EM ANDAMENTO")
	require.NoError(t, err)
	assert.Equal(t, ouvidoria.StatusEmAndamento, m.Status)

	m, err = svc.SetStatus(ctx, "OUV-2026-AAA001", "recusado")
	require.NoError(t, err)
	assert.Equal(t, ouvidoria.StatusRecusado, m.Status)

	_, err = svc.SetStatus(ctx, "OUV-2026-AAA001", "ARQUIVADO")
	assert.ErrorIs(t, err, ouvidoria.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "OUV-2026-ZZZZZZ", "CONCLUÍDO")
	assert.ErrorIs(t, err, ouvidoria.ErrNotFound)
}

func TestRespond(t *testing.T) {
	svc, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Respond(ctx, "OUV-2026-AAA002", "   ", ouvidoria.User{Username: "atendente"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	m, err := svc.Respond(ctx, "OUV-2026-AAA002", "Agradecemos o elogio.", ouvidoria.User{Username: "atendente"})
	require.NoError(t, err)
	assert.Equal(t, ouvidoria.StatusConcluido, m.Status)
	assert.Equal(t, "Agradecemos o elogio.", m.Response)
	assert.Equal(t, "atendente", m.ResponderName)
	require.NotNil(t, m.ResponseTime)

	m, err = svc.Respond(ctx, "OUV-2026-AAA004", "Equipe enviada.", ouvidoria.User{Username: "ad", Name: "Administrador Global"})
	require.NoError(t, err)
	assert.Equal(t, "Administrador Global", m.ResponderName)

	_, err = svc.Respond(ctx, "OUV-2026-ZZZZZZ", "x", ouvidoria.User{Username: "ad"})
	assert.ErrorIs(t, err, ouvidoria.ErrNotFound)
}

func TestAttendants(t *testing.T) {
	svc, st := newFixture(t)

	u, err := svc.CreateAttendant("Maria Atendente", "maria", "segredo")
	require.NoError(t, err)
	assert.Equal(t, AttendantCPF, u.CPF)
	assert.Equal(t, ouvidoria.RoleAttendant, u.Role)

	_, ok := st.Authenticate("maria", "segredo")
	assert.True(t, ok)

	_, err = svc.CreateAttendant("Outra", "maria", "x")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.CreateAttendant("", "joao", "x")
	assert.ErrorIs(t, err, ErrInvalidUser)

	assert.Len(t, svc.Attendants(), 2)

	require.NoError(t, svc.RemoveUser("ad", "maria"))
	assert.Len(t, svc.Attendants(), 1)
	assert.ErrorIs(t, svc.RemoveUser("ad", "maria"), ErrUserNotFound)
	assert.ErrorIs(t, svc.RemoveUser("ad", "ad"), ErrSelfRemoval)
}

func TestCitizens(t *testing.T) {
	svc, _ := newFixture(t)

	u, err := svc.CreateCitizen("Bruno Oliveira", "22222222222", "1")
	require.NoError(t, err)
	assert.Equal(t, "222.222.222-22", u.Username)
	assert.Equal(t, "222.222.222-22", u.CPF)

	_, err = svc.CreateCitizen("Bruno", "222.222.222-22", "1")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.CreateCitizen("Sem CPF", "123", "1")
	assert.ErrorIs(t, err, ErrInvalidUser)

	assert.Len(t, svc.Citizens(), 2)
}

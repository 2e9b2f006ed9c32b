package settings

import "sync"

// AppSettings são as configurações editáveis do portal.
type AppSettings struct {
	PortalName      string `json:"portalName"`
	AllowAnonymous  bool   `json:"allowAnonymous"`
	MaintenanceMode bool   `json:"maintenanceMode"`
	SLADays         int    `json:"slaDays"`
	PrimaryColor    string `json:"primaryColor"`
}

// Defaults devolve a configuração de fábrica.
func Defaults() AppSettings {
	return AppSettings{
		PortalName:      "Ouvidoria Participa DF",
		AllowAnonymous:  true,
		MaintenanceMode: false,
		SLADays:         20,
		PrimaryColor:    "#004A99",
	}
}

// Update traz apenas os campos alterados.
type Update struct {
	PortalName      *string `json:"portalName"`
	AllowAnonymous  *bool   `json:"allowAnonymous"`
	MaintenanceMode *bool   `json:"maintenanceMode"`
	SLADays         *int    `json:"slaDays"`
	PrimaryColor    *string `json:"primaryColor"`
}

// Store guarda a configuração única do portal em memória.
type Store struct {
	mu      sync.RWMutex
	current AppSettings
}

// NewStore inicia o store com a configuração informada.
func NewStore(initial AppSettings) *Store {
	return &Store{current: initial}
}

// Get devolve cópia da configuração atual.
func (s *Store) Get() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update mescla os campos informados; a última escrita vence e nada é validado aqui.
func (s *Store) Update(u Update) AppSettings {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.PortalName != nil {
		s.current.PortalName = *u.PortalName
	}
	if u.AllowAnonymous != nil {
		s.current.AllowAnonymous = *u.AllowAnonymous
	}
	if u.MaintenanceMode != nil {
		s.current.MaintenanceMode = *u.MaintenanceMode
	}
	if u.SLADays != nil {
		s.current.SLADays = *u.SLADays
	}
	if u.PrimaryColor != nil {
		s.current.PrimaryColor = *u.PrimaryColor
	}
	return s.current
}

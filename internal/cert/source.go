package cert

import (
	"net/url"

	"github.com/dipauto/certidao-api/internal/models"
	"github.com/dipauto/certidao-api/internal/utils"
)

// Source describes how to drive one certificate portal: where the landing
// page and submit endpoint live relative to the configured base address,
// whether it sits behind a bot challenge, and how the entity-specific form
// is built. The fetch protocol itself is shared by all four sources.
type Source struct {
	Type models.SourceType

	// CertificateKind names the certificate in store metadata and filenames.
	CertificateKind string

	// PagePath is the landing/query page (path plus query), fetched with a
	// fresh cookie store to establish the session.
	PagePath string

	// SubmitPath receives the form POST through the same cookie store.
	SubmitPath string

	// HasChallenge marks sources protected by a Turnstile widget. Sources
	// without one submit with an empty token.
	HasChallenge bool

	// FollowDocLink enables the single extra hop for sources that answer
	// with an HTML page embedding a link to the PDF.
	FollowDocLink bool

	// BuildForm produces the portal form for a task, with the solved token
	// already available (empty for unchallenged sources).
	BuildForm func(task models.CertificateTask, token string) url.Values
}

func stjForm(certidaoTipo, cpf, cnpj string) url.Values {
	return url.Values{
		"certidaoTipo":                      {certidaoTipo},
		"classe":                            {""},
		"num_processo":                      {""},
		"num_registro":                      {""},
		"certidaoEleitoralPublicaParteCPF":  {""},
		"parteNome":                         {""},
		"parteCPF":                          {cpf},
		"parteCNPJ":                         {cnpj},
		"advogado.cpf":                      {""},
		"certidaoProcessosEmTramite":        {"TRUE"},
		"aplicacao":                         {"certidao"},
		"acao":                              {"emitir"},
	}
}

func projudiForm(tipoArea string, task models.CertificateTask, token string) url.Values {
	return url.Values{
		"PaginaAtual":           {"3"},
		"PaginaAnterior":        {"null"},
		"TituloPagina":          {"null"},
		"TipoArea":              {tipoArea},
		"Nome":                  {task.Name},
		"Cpf":                   {utils.CleanDocumento(task.TaxID)},
		"NomeMae":               {task.MotherName},
		"DataNascimento":        {utils.FormatBirthDate(task.BirthDate)},
		"Id_Comarca":            {""},
		"Comarca":               {""},
		"imgSubmeter":           {"Gerar Certidão"},
		"cf-turnstile-response": {token},
		// The portal checks the legacy field name as well.
		"g-recaptcha-response": {token},
	}
}

var sources = map[models.SourceType]Source{
	models.SourceSuperiorCourtCompany: {
		Type:            models.SourceSuperiorCourtCompany,
		CertificateKind: "STJ_PJ",
		PagePath:        "/processo/certidao/emitir",
		SubmitPath:      "/processo/certidao/emitir",
		BuildForm: func(task models.CertificateTask, _ string) url.Values {
			return stjForm("pessoajuridicaconstanadaconsta", "", utils.FormatCNPJ(task.TaxID))
		},
	},
	models.SourceSuperiorCourtIndividual: {
		Type:            models.SourceSuperiorCourtIndividual,
		CertificateKind: "STJ_PF",
		PagePath:        "/processo/certidao/emitir",
		SubmitPath:      "/processo/certidao/emitir",
		BuildForm: func(task models.CertificateTask, _ string) url.Values {
			return stjForm("pessoafisicaconstanadaconsta", utils.FormatCPF(task.TaxID), "")
		},
	},
	models.SourceStateCourtCivil: {
		Type:            models.SourceStateCourtCivil,
		CertificateKind: "TJGO_Civel",
		PagePath:        "/CertidaoNegativaPositivaPublica?PaginaAtual=1&TipoArea=1&InteressePessoal=&Territorio=&Finalidade=",
		SubmitPath:      "/CertidaoNegativaPositivaPublica",
		HasChallenge:    true,
		FollowDocLink:   true,
		BuildForm: func(task models.CertificateTask, token string) url.Values {
			return projudiForm("1", task, token)
		},
	},
	models.SourceStateCourtCriminal: {
		Type:            models.SourceStateCourtCriminal,
		CertificateKind: "TJGO_Criminal",
		PagePath:        "/CertidaoNegativaPositivaPublica?PaginaAtual=1&TipoArea=2&InteressePessoal=S",
		SubmitPath:      "/CertidaoNegativaPositivaPublica",
		HasChallenge:    true,
		FollowDocLink:   true,
		BuildForm: func(task models.CertificateTask, token string) url.Values {
			return projudiForm("2", task, token)
		},
	},
}

// SourceFor resolves the descriptor for a source type.
func SourceFor(t models.SourceType) (Source, bool) {
	s, ok := sources[t]
	return s, ok
}

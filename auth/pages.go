package auth

import "nutri-planner/models"

// Page is a navigation target of the client application.
type Page string

const (
	PageLogin                 Page = "login.html"
	PageRegister              Page = "register.html"
	PageQuestionnaire         Page = "diagnostico.html"
	PageSummary               Page = "resumoFormulario.html"
	PagePatientDashboard      Page = "DashBoardPaciente.html"
	PageNutritionistDashboard Page = "dashBoardNutri.html"
	PageHistory               Page = "historico.html"
	PageDiagnosticsReview     Page = "nutricionista_diagnosticos.html"
)

// Navigator moves the client to another page. The HTTP surface has no
// navigation of its own and uses NopNavigator.
type Navigator interface {
	Navigate(p Page)
}

type NopNavigator struct{}

func (NopNavigator) Navigate(Page) {}

// DashboardFor is the landing page of a role after login.
func DashboardFor(role models.Role) Page {
	if role == models.RoleNutritionist {
		return PageNutritionistDashboard
	}
	return PagePatientDashboard
}

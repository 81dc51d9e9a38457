package notifications

import (
	"bytes"
	"context"
	"html/template"
)

const doctorCredentialsTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hello Dr. {{.Name}},</p>
  <p>An administrator has created your CureHub doctor account. Sign in with:</p>
  <ul>
    <li>Email: {{.Email}}</li>
    <li>Temporary password: {{.TempPassword}}</li>
  </ul>
  <p>Please change this password from your profile after your first login.</p>
  <p>The CureHub team</p>
</body>
</html>`

var doctorCredentialsTmpl = template.Must(template.New("doctor_credentials").Parse(doctorCredentialsTemplate))

type doctorCredentialsData struct {
	Name         string
	Email        string
	TempPassword string
}

// SendDoctorCredentials delivers the one-time password of a freshly
// provisioned doctor account.
func (c *BrevoClient) SendDoctorCredentials(ctx context.Context, name, email, tempPassword string) (string, error) {
	var buf bytes.Buffer
	err := doctorCredentialsTmpl.Execute(&buf, doctorCredentialsData{
		Name:         name,
		Email:        email,
		TempPassword: tempPassword,
	})
	if err != nil {
		return "", err
	}
	return c.sendHTML(ctx, email, name, "Your CureHub doctor account", buf.String())
}

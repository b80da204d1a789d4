package snmpengine

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    SNMPVersion
		wantErr bool
	}{
		{"1", V1, false},
		{"v1", V1, false},
		{"2c", V2c, false},
		{"v2c", V2c, false},
		{"3", V3, false},
		{"v3", V3, false},
		{"v4", V1, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSecurityLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    SecurityLevel
		wantErr bool
	}{
		{"", NoAuthNoPriv, false},
		{"noAuthNoPriv", NoAuthNoPriv, false},
		{"AuthNoPriv", AuthNoPriv, false},
		{"authpriv", AuthPriv, false},
		{"bogus", NoAuthNoPriv, true},
	}
	for _, tt := range tests {
		got, err := ParseSecurityLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSecurityLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseSecurityLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseAuthProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    AuthProtocol
		wantErr bool
	}{
		{"", AuthNone, false},
		{"none", AuthNone, false},
		{"md5", Md5, false},
		{"SHA", Sha, false},
		{"sha256", AuthNone, true},
	}
	for _, tt := range tests {
		got, err := ParseAuthProtocol(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAuthProtocol(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseAuthProtocol(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParsePrivProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    PrivProtocol
		wantErr bool
	}{
		{"", PrivNone, false},
		{"des", Des, false},
		{"3des", TripleDes, false},
		{"tripledes", TripleDes, false},
		{"AES", Aes, false},
		{"aes192", Aes192, false},
		{"aes256", Aes256, false},
		{"blowfish", PrivNone, true},
	}
	for _, tt := range tests {
		got, err := ParsePrivProtocol(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePrivProtocol(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParsePrivProtocol(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseSecurityModel(t *testing.T) {
	tests := []struct {
		in      string
		want    securityModel
		wantErr bool
	}{
		{"v1", securityCommunity, false},
		{"v2c", securityCommunity, false},
		{"community", securityCommunity, false},
		{"v3", securityUsm, false},
		{"usm", securityUsm, false},
		{"", securityAny, false},
		{"any", securityAny, false},
		{"ntlm", securityAny, true},
	}
	for _, tt := range tests {
		got, err := ParseSecurityModel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSecurityModel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseSecurityModel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSecurityModelForVersion(t *testing.T) {
	if got := SecurityModelForVersion(V1); got != securityCommunity {
		t.Errorf("SecurityModelForVersion(V1) = %v, want securityCommunity", got)
	}
	if got := SecurityModelForVersion(V2c); got != securityCommunity {
		t.Errorf("SecurityModelForVersion(V2c) = %v, want securityCommunity", got)
	}
	if got := SecurityModelForVersion(V3); got != securityUsm {
		t.Errorf("SecurityModelForVersion(V3) = %v, want securityUsm", got)
	}
}

func TestVersionStringers(t *testing.T) {
	if V2c.String() != "2c" {
		t.Errorf("V2c.String() = %q", V2c.String())
	}
	if AuthPriv.String() != "AuthPriv" {
		t.Errorf("AuthPriv.String() = %q", AuthPriv.String())
	}
	if Sha.String() != "SHA" {
		t.Errorf("Sha.String() = %q", Sha.String())
	}
	if Aes256.String() != "AES256" {
		t.Errorf("Aes256.String() = %q", Aes256.String())
	}
	if ViewWrite.String() != "write" {
		t.Errorf("ViewWrite.String() = %q", ViewWrite.String())
	}
}

package envelope

import (
	"reflect"
	"testing"
	"unsafe"
)

func Test_addr_AsciiDomain(t *testing.T) {
	tests := []struct {
		name string
		Addr string
		want string
	}{
		{"empty", "", ""},
		{"no domain", "root", ""},
		{"normal", "root@localhost", "localhost"},
		{"IDNA", "root@スパム.example.com", "xn--zck5b2b.example.com"},
		{"IDNA encoded", "root@xn--zck5b2b.example.com", "xn--zck5b2b.example.com"},
		{"IDNA broken", "root@スパム    .example.com", "スパム    .example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := addr{Addr: tt.Addr}
			if got := a.AsciiDomain(); got != tt.want {
				t.Errorf("AsciiDomain() = %v, want %v", got, tt.want)
			}
		})
	}
	t.Run("cache", func(t *testing.T) {
		a := addr{Addr: "root@localhost"}
		got1 := a.AsciiDomain()
		got2 := a.AsciiDomain()

		hdr1 := (*reflect.StringHeader)(unsafe.Pointer(&got1))
		hdr2 := (*reflect.StringHeader)(unsafe.Pointer(&got2))

		if hdr1.Data != hdr2.Data {
			t.Errorf("AsciiDomain() did not cache value")
		}
	})
}

func Test_addr_Domain(t *testing.T) {
	tests := []struct {
		name string
		Addr string
		want string
	}{
		{"empty", "", ""},
		{"no domain", "root", ""},
		{"normal", "root@localhost", "localhost"},
		{"IDNA", "root@スパム.example.com", "スパム.example.com"},
		{"IDNA encoded", "root@xn--zck5b2b.example.com", "xn--zck5b2b.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := addr{Addr: tt.Addr}
			if got := a.Domain(); got != tt.want {
				t.Errorf("Domain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_addr_Local(t *testing.T) {
	tests := []struct {
		name string
		Addr string
		want string
	}{
		{"empty", "", ""},
		{"no domain", "root", "root"},
		{"normal", "root@localhost", "root"},
		{"IDNA", "root@スパム.example.com", "root"},
		{"IDNA encoded", "root@xn--zck5b2b.example.com", "root"},
		{"bogus", "local root@localhost", "local root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := addr{Addr: tt.Addr}
			if got := a.Local(); got != tt.want {
				t.Errorf("Local() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_addr_UnicodeDomain(t *testing.T) {
	tests := []struct {
		name string
		Addr string
		want string
	}{
		{"empty", "", ""},
		{"no domain", "root", ""},
		{"normal", "root@localhost", "localhost"},
		{"IDNA", "root@スパム.example.com", "スパム.example.com"},
		{"IDNA encoded", "root@xn--zck5b2b.example.com", "スパム.example.com"},
		{"IDNA broken", "root@xn--zck5b2b    .example.com", "xn--zck5b2b    .example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := addr{Addr: tt.Addr}
			if got := a.UnicodeDomain(); got != tt.want {
				t.Errorf("UnicodeDomain() = %v, want %v", got, tt.want)
			}
		})
	}
	t.Run("cache", func(t *testing.T) {
		a := addr{Addr: "root@localhost"}
		got1 := a.UnicodeDomain()
		got2 := a.UnicodeDomain()

		hdr1 := (*reflect.StringHeader)(unsafe.Pointer(&got1))
		hdr2 := (*reflect.StringHeader)(unsafe.Pointer(&got2))

		if hdr1.Data != hdr2.Data {
			t.Errorf("UnicodeDomain() did not cache value")
		}
	})
}

func Test_split(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want []string
	}{
		{"empty", "", []string{"", "", ""}},
		{"no domain", "root", []string{"root", "", "root"}},
		{"normal", "root@localhost", []string{"root", "localhost", "root@localhost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := split(tt.addr); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("split() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewMailFrom(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want MailFrom
	}{
		{"no params", []string{"root@localhost"}, MailFrom{addr: addr{Addr: "root@localhost", Args: []string{}}}},
		{"with params", []string{"root@localhost", "SIZE=1024", "BODY=8BITMIME"}, MailFrom{addr: addr{Addr: "root@localhost", Args: []string{"SIZE=1024", "BODY=8BITMIME"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewMailFrom(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewMailFrom() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMailFrom_Copy(t *testing.T) {
	t.Parallel()
	null := (*MailFrom)(nil)
	if got := null.Copy(); got != nil {
		t.Errorf("Copy(nil) = %v, want %v", got, nil)
	}
	r1 := NewMailFrom([]string{"root@localhost"})
	got := r1.Copy()
	if got == &r1 {
		t.Errorf("Copy() did not create an independent copy")
	}
}

func TestNewRcptTo(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want RcptTo
	}{
		{"no params", []string{"root@localhost"}, RcptTo{addr: addr{Addr: "root@localhost", Args: []string{}}}},
		{"with params", []string{"root@localhost", "NOTIFY=SUCCESS"}, RcptTo{addr: addr{Addr: "root@localhost", Args: []string{"NOTIFY=SUCCESS"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewRcptTo(tt.args); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewRcptTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRcptTo_Copy(t *testing.T) {
	t.Parallel()
	null := (*RcptTo)(nil)
	if got := null.Copy(); got != nil {
		t.Errorf("Copy(nil) = %v, want %v", got, nil)
	}
	r1 := NewRcptTo([]string{"root@localhost"})
	got := r1.Copy()
	if got == &r1 {
		t.Errorf("Copy() did not create an independent copy")
	}
}

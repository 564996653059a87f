package errno

// Codes use Linux numbering, negated. EWOULDBLOCK and EDEADLOCK are
// aliases and share the value of their primary name.
const (
	EPERM           Code = -1
	ENOENT          Code = -2
	ESRCH           Code = -3
	EINTR           Code = -4
	EIO             Code = -5
	ENXIO           Code = -6
	E2BIG           Code = -7
	ENOEXEC         Code = -8
	EBADF           Code = -9
	ECHILD          Code = -10
	EAGAIN          Code = -11
	ENOMEM          Code = -12
	EACCES          Code = -13
	EFAULT          Code = -14
	ENOTBLK         Code = -15
	EBUSY           Code = -16
	EEXIST          Code = -17
	EXDEV           Code = -18
	ENODEV          Code = -19
	ENOTDIR         Code = -20
	EISDIR          Code = -21
	EINVAL          Code = -22
	ENFILE          Code = -23
	EMFILE          Code = -24
	ENOTTY          Code = -25
	ETXTBSY         Code = -26
	EFBIG           Code = -27
	ENOSPC          Code = -28
	ESPIPE          Code = -29
	EROFS           Code = -30
	EMLINK          Code = -31
	EPIPE           Code = -32
	EDOM            Code = -33
	ERANGE          Code = -34
	EDEADLK         Code = -35
	ENAMETOOLONG    Code = -36
	ENOLCK          Code = -37
	ENOSYS          Code = -38
	ENOTEMPTY       Code = -39
	ELOOP           Code = -40
	EWOULDBLOCK     Code = -11
	ENOMSG          Code = -42
	EIDRM           Code = -43
	ECHRNG          Code = -44
	EL2NSYNC        Code = -45
	EL3HLT          Code = -46
	EL3RST          Code = -47
	ELNRNG          Code = -48
	EUNATCH         Code = -49
	ENOCSI          Code = -50
	EL2HLT          Code = -51
	EBADE           Code = -52
	EBADR           Code = -53
	EXFULL          Code = -54
	ENOANO          Code = -55
	EBADRQC         Code = -56
	EBADSLT         Code = -57
	EDEADLOCK       Code = -35
	EBFONT          Code = -59
	ENOSTR          Code = -60
	ENODATA         Code = -61
	ETIME           Code = -62
	ENOSR           Code = -63
	ENONET          Code = -64
	ENOPKG          Code = -65
	EREMOTE         Code = -66
	ENOLINK         Code = -67
	EADV            Code = -68
	ESRMNT          Code = -69
	ECOMM           Code = -70
	EPROTO          Code = -71
	EMULTIHOP       Code = -72
	EDOTDOT         Code = -73
	EBADMSG         Code = -74
	EOVERFLOW       Code = -75
	ENOTUNIQ        Code = -76
	EBADFD          Code = -77
	EREMCHG         Code = -78
	ELIBACC         Code = -79
	ELIBBAD         Code = -80
	ELIBSCN         Code = -81
	ELIBMAX         Code = -82
	ELIBEXEC        Code = -83
	EILSEQ          Code = -84
	ERESTART        Code = -85
	ESTRPIPE        Code = -86
	EUSERS          Code = -87
	ENOTSOCK        Code = -88
	EDESTADDRREQ    Code = -89
	EMSGSIZE        Code = -90
	EPROTOTYPE      Code = -91
	ENOPROTOOPT     Code = -92
	EPROTONOSUPPORT Code = -93
	ESOCKTNOSUPPORT Code = -94
	EOPNOTSUPP      Code = -95
	EPFNOSUPPORT    Code = -96
	EAFNOSUPPORT    Code = -97
	EADDRINUSE      Code = -98
	EADDRNOTAVAIL   Code = -99
	ENETDOWN        Code = -100
	ENETUNREACH     Code = -101
	ENETRESET       Code = -102
	ECONNABORTED    Code = -103
	ECONNRESET      Code = -104
	ENOBUFS         Code = -105
	EISCONN         Code = -106
	ENOTCONN        Code = -107
	ESHUTDOWN       Code = -108
	ETOOMANYREFS    Code = -109
	ETIMEDOUT       Code = -110
	ECONNREFUSED    Code = -111
	EHOSTDOWN       Code = -112
	EHOSTUNREACH    Code = -113
	EALREADY        Code = -114
	EINPROGRESS     Code = -115
	ESTALE          Code = -116
	EUCLEAN         Code = -117
	ENOTNAM         Code = -118
	ENAVAIL         Code = -119
	EISNAM          Code = -120
	EREMOTEIO       Code = -121
	EDQUOT          Code = -122
	ENOMEDIUM       Code = -123
	EMEDIUMTYPE     Code = -124
)

var names = map[Code]string{
	EPERM:           "EPERM",
	ENOENT:          "ENOENT",
	ESRCH:           "ESRCH",
	EINTR:           "EINTR",
	EIO:             "EIO",
	ENXIO:           "ENXIO",
	E2BIG:           "E2BIG",
	ENOEXEC:         "ENOEXEC",
	EBADF:           "EBADF",
	ECHILD:          "ECHILD",
	EAGAIN:          "EAGAIN",
	ENOMEM:          "ENOMEM",
	EACCES:          "EACCES",
	EFAULT:          "EFAULT",
	ENOTBLK:         "ENOTBLK",
	EBUSY:           "EBUSY",
	EEXIST:          "EEXIST",
	EXDEV:           "EXDEV",
	ENODEV:          "ENODEV",
	ENOTDIR:         "ENOTDIR",
	EISDIR:          "EISDIR",
	EINVAL:          "EINVAL",
	ENFILE:          "ENFILE",
	EMFILE:          "EMFILE",
	ENOTTY:          "ENOTTY",
	ETXTBSY:         "ETXTBSY",
	EFBIG:           "EFBIG",
	ENOSPC:          "ENOSPC",
	ESPIPE:          "ESPIPE",
	EROFS:           "EROFS",
	EMLINK:          "EMLINK",
	EPIPE:           "EPIPE",
	EDOM:            "EDOM",
	ERANGE:          "ERANGE",
	EDEADLK:         "EDEADLK",
	ENAMETOOLONG:    "ENAMETOOLONG",
	ENOLCK:          "ENOLCK",
	ENOSYS:          "ENOSYS",
	ENOTEMPTY:       "ENOTEMPTY",
	ELOOP:           "ELOOP",
	ENOMSG:          "ENOMSG",
	EIDRM:           "EIDRM",
	ECHRNG:          "ECHRNG",
	EL2NSYNC:        "EL2NSYNC",
	EL3HLT:          "EL3HLT",
	EL3RST:          "EL3RST",
	ELNRNG:          "ELNRNG",
	EUNATCH:         "EUNATCH",
	ENOCSI:          "ENOCSI",
	EL2HLT:          "EL2HLT",
	EBADE:           "EBADE",
	EBADR:           "EBADR",
	EXFULL:          "EXFULL",
	ENOANO:          "ENOANO",
	EBADRQC:         "EBADRQC",
	EBADSLT:         "EBADSLT",
	EBFONT:          "EBFONT",
	ENOSTR:          "ENOSTR",
	ENODATA:         "ENODATA",
	ETIME:           "ETIME",
	ENOSR:           "ENOSR",
	ENONET:          "ENONET",
	ENOPKG:          "ENOPKG",
	EREMOTE:         "EREMOTE",
	ENOLINK:         "ENOLINK",
	EADV:            "EADV",
	ESRMNT:          "ESRMNT",
	ECOMM:           "ECOMM",
	EPROTO:          "EPROTO",
	EMULTIHOP:       "EMULTIHOP",
	EDOTDOT:         "EDOTDOT",
	EBADMSG:         "EBADMSG",
	EOVERFLOW:       "EOVERFLOW",
	ENOTUNIQ:        "ENOTUNIQ",
	EBADFD:          "EBADFD",
	EREMCHG:         "EREMCHG",
	ELIBACC:         "ELIBACC",
	ELIBBAD:         "ELIBBAD",
	ELIBSCN:         "ELIBSCN",
	ELIBMAX:         "ELIBMAX",
	ELIBEXEC:        "ELIBEXEC",
	EILSEQ:          "EILSEQ",
	ERESTART:        "ERESTART",
	ESTRPIPE:        "ESTRPIPE",
	EUSERS:          "EUSERS",
	ENOTSOCK:        "ENOTSOCK",
	EDESTADDRREQ:    "EDESTADDRREQ",
	EMSGSIZE:        "EMSGSIZE",
	EPROTOTYPE:      "EPROTOTYPE",
	ENOPROTOOPT:     "ENOPROTOOPT",
	EPROTONOSUPPORT: "EPROTONOSUPPORT",
	ESOCKTNOSUPPORT: "ESOCKTNOSUPPORT",
	EOPNOTSUPP:      "EOPNOTSUPP",
	EPFNOSUPPORT:    "EPFNOSUPPORT",
	EAFNOSUPPORT:    "EAFNOSUPPORT",
	EADDRINUSE:      "EADDRINUSE",
	EADDRNOTAVAIL:   "EADDRNOTAVAIL",
	ENETDOWN:        "ENETDOWN",
	ENETUNREACH:     "ENETUNREACH",
	ENETRESET:       "ENETRESET",
	ECONNABORTED:    "ECONNABORTED",
	ECONNRESET:      "ECONNRESET",
	ENOBUFS:         "ENOBUFS",
	EISCONN:         "EISCONN",
	ENOTCONN:        "ENOTCONN",
	ESHUTDOWN:       "ESHUTDOWN",
	ETOOMANYREFS:    "ETOOMANYREFS",
	ETIMEDOUT:       "ETIMEDOUT",
	ECONNREFUSED:    "ECONNREFUSED",
	EHOSTDOWN:       "EHOSTDOWN",
	EHOSTUNREACH:    "EHOSTUNREACH",
	EALREADY:        "EALREADY",
	EINPROGRESS:     "EINPROGRESS",
	ESTALE:          "ESTALE",
	EUCLEAN:         "EUCLEAN",
	ENOTNAM:         "ENOTNAM",
	ENAVAIL:         "ENAVAIL",
	EISNAM:          "EISNAM",
	EREMOTEIO:       "EREMOTEIO",
	EDQUOT:          "EDQUOT",
	ENOMEDIUM:       "ENOMEDIUM",
	EMEDIUMTYPE:     "EMEDIUMTYPE",
}

// aliases resolves the symbolic names that share a code with another entry.
var aliases = map[string]Code{
	"EWOULDBLOCK": EWOULDBLOCK,
	"EDEADLOCK":   EDEADLOCK,
}

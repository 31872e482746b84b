package milter

// OptAction is a bitmask of mutations a filter is allowed to perform,
// negotiated in the `actions` field of SMFIC_OPTNEG.
type OptAction uint32

// SMFIF_* action bits.
const (
	OptAddHeader  OptAction = 1 << iota // SMFIF_ADDHDRS
	OptChangeBody                       // SMFIF_CHGBODY
	OptAddRcpt                          // SMFIF_ADDRCPT
	OptDelRcpt                          // SMFIF_DELRCPT
	OptChangeHeader                     // SMFIF_CHGHDRS
	OptQuarantine                       // SMFIF_QUARANTINE
)

// OptAllActions is the union of every action bit this package knows about.
const OptAllActions = OptAddHeader | OptChangeBody | OptAddRcpt | OptDelRcpt | OptChangeHeader | OptQuarantine

// OptProtocol is a bitmask of protocol steps a filter asks the MTA to skip,
// negotiated in the `protocol` field of SMFIC_OPTNEG.
type OptProtocol uint32

// SMFIP_* protocol bits.
const (
	OptNoConnect OptProtocol = 1 << iota // SMFIP_NOCONNECT
	OptNoHelo                            // SMFIP_NOHELO
	OptNoMail                            // SMFIP_NOMAIL
	OptNoRcpt                            // SMFIP_NORCPT
	OptNoBody                            // SMFIP_NOBODY
	OptNoHeader                          // SMFIP_NOHDRS
	OptNoEOH                             // SMFIP_NOEOH
	OptNoHeaderReply                     // SMFIP_NR_HDR / SMFIP_NOHREPL
	OptNoUnknown                         // SMFIP_NOUNKNOWN
	OptNoData                            // SMFIP_NODATA
	OptSkip                              // SMFIP_SKIP
	OptRcptReject                        // SMFIP_RCPT_REJ
	OptNoReplyConnect                    // SMFIP_NR_CONN
	OptNoReplyHelo                       // SMFIP_NR_HELO
	OptNoReplyMail                       // SMFIP_NR_MAIL
	OptNoReplyRcpt                       // SMFIP_NR_RCPT
	OptNoReplyData                       // SMFIP_NR_DATA
	OptNoReplyUnknown                    // SMFIP_NR_UNKN
	OptNoReplyEOH                        // SMFIP_NR_EOH
	OptNoReplyBody                       // SMFIP_NR_BODY
	OptHeaderLeadingSpace                // SMFIP_HDR_LEADSPC
)

// OptAllProtocol is the union of every protocol bit this package knows
// about.
const OptAllProtocol = OptNoConnect | OptNoHelo | OptNoMail | OptNoRcpt | OptNoBody |
	OptNoHeader | OptNoEOH | OptNoHeaderReply | OptNoUnknown | OptNoData | OptSkip |
	OptRcptReject | OptNoReplyConnect | OptNoReplyHelo | OptNoReplyMail | OptNoReplyRcpt |
	OptNoReplyData | OptNoReplyUnknown | OptNoReplyEOH | OptNoReplyBody | OptHeaderLeadingSpace

// ProtocolVersion is the milter protocol version this package advertises
// during OPTNEG.
const ProtocolVersion uint32 = 6

package notify

// User-facing messages (Thai).
const (
	MsgGenericError = "เกิดข้อผิดพลาด"

	MsgDiagnosisCreated     = "บันทึกการวินิจฉัยสำเร็จ"
	MsgDiagnosisCreatedDesc = "เพิ่มข้อมูลการวินิจฉัยใหม่เรียบร้อยแล้ว"
	MsgDiagnosisDeleted     = "ลบการวินิจฉัยสำเร็จ"
	MsgDiagnosisDeletedDesc = "ลบข้อมูลการวินิจฉัยเรียบร้อยแล้ว"
	MsgPatientRequired      = "กรุณาระบุผู้ป่วย"
	MsgICD10Required        = "กรุณาระบุรหัส ICD-10"

	MsgNationalIDInvalid   = "กรุณากรอกเลขบัตรประชาชน 13 หลัก"
	MsgDOBRequired         = "กรุณาเลือกวันเกิด"
	MsgPhoneRequired       = "กรุณากรอกเบอร์โทรศัพท์"
	MsgVerifyFailed        = "ไม่สามารถยืนยันตัวตนได้"
	MsgVerifyFailedDefault = "เกิดข้อผิดพลาดในการตรวจสอบ"
	MsgPatientFound        = "พบข้อมูลในระบบ"

	MsgEmailRequired     = "กรุณากรอกอีเมล"
	MsgPasswordTooShort  = "รหัสผ่านต้องมีอย่างน้อย 6 ตัวอักษร"
	MsgPasswordMismatch  = "รหัสผ่านไม่ตรงกัน"
	MsgSignUpFailed      = "ลงทะเบียนไม่สำเร็จ"
	MsgSignInToContinue  = "กรุณาเข้าสู่ระบบเพื่อดำเนินการต่อ"
	MsgLinkFailed        = "ไม่สามารถเชื่อมโยงบัญชีได้"
	MsgSignUpSucceeded   = "ลงทะเบียนสำเร็จ!"
	MsgPatientNamePrefix = "ชื่อ: "
)
